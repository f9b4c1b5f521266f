package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// optional parses the query parameter key with parse. It returns nil when
// the parameter is missing or blank.
func optional[T any](r *http.Request, key, want string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be "+want).
			WithDetails(map[string]any{"field": key, "value": raw})
	}
	return &v, nil
}

// ParseQueryInt falls back to def when the parameter is absent and rejects
// values outside [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	v, err := optional(r, key, "a whole number", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case v == nil:
		return def, nil
	case *v < min || *v > max:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return *v, nil
}

// ParseQueryInt64 reads a non-negative amount such as a price bound.
func ParseQueryInt64(r *http.Request, key string) (*int64, error) {
	return optional(r, key, "a non-negative number", func(raw string) (int64, error) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && n < 0 {
			err = strconv.ErrRange
		}
		return n, err
	})
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return optional(r, key, "a uuid", uuid.Parse)
}

func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}

// ParsePage reads ?page and ?limit for offset listings.
func ParsePage(r *http.Request) (pagination.Page, error) {
	page, err := ParseQueryInt(r, "page", 1, 1, 100000)
	if err != nil {
		return pagination.Page{}, err
	}
	limit, err := ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Page: page, Limit: limit}.Normalize(), nil
}
