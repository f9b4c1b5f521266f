package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// MaxLines caps the number of distinct lines a persisted cart may hold.
const MaxLines = 100

// Service keeps the signed-in user's cart in sync with the database.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	Update(ctx context.Context, userID uuid.UUID, items map[string]int) (map[string]int, error)
	// Clear empties the cart inside tx. A nil tx runs on the service's own handle.
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return items, nil
}

// Update replaces the whole cart. Zero quantities are dropped.
func (s *service) Update(ctx context.Context, userID uuid.UUID, items map[string]int) (map[string]int, error) {
	clean, err := Normalize(items)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Replace(ctx, userID, clean, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return clean, nil
}

func (s *service) Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := s.repo.WithTx(tx).Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Normalize validates cart keys and quantities, drops empty lines and
// rewrites keys in canonical lower-case form.
func Normalize(items map[string]int) (map[string]int, error) {
	out := make(map[string]int, len(items))
	var invalid []string
	for raw, qty := range items {
		if qty < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative").
				WithDetails(map[string]any{"key": raw, "quantity": qty})
		}
		productPart, variantPart := pricing.CartKey(raw).Split()
		productID, err := uuid.Parse(productPart)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		variantID := ""
		if variantPart != "" {
			parsed, err := uuid.Parse(variantPart)
			if err != nil {
				invalid = append(invalid, raw)
				continue
			}
			variantID = parsed.String()
		}
		if qty == 0 {
			continue
		}
		// Spellings of the same line collapse onto one canonical key.
		out[string(pricing.Key(productID.String(), variantID))] += qty
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart keys").
			WithDetails(map[string]any{"keys": invalid})
	}
	if len(out) > MaxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart cannot hold more than %d lines", MaxLines))
	}
	return out, nil
}
