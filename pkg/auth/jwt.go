// Package auth verifies the HS256 access tokens issued by the identity
// provider. Signing exists for local tooling and tests only.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var (
	ErrExpired = errors.New("auth: token expired")
	ErrInvalid = errors.New("auth: token invalid")
)

// Subject is who a token speaks for.
type Subject struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

// Claims is the token body. user_id and role are custom claims next to the
// registered ones.
type Claims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Subject {
	return Subject{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// Verifier checks signature, issuer and expiry.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" || cfg.Issuer == "" {
		return nil, errors.New("auth: jwt secret and issuer are required")
	}
	return &Verifier{
		key: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify returns ErrExpired for a well formed token past its exp and
// ErrInvalid for anything else that fails.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	case claims.UserID == uuid.Nil:
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalid)
	case !claims.Role.IsValid():
		return nil, fmt.Errorf("%w: role %q", ErrInvalid, claims.Role)
	}
	return claims, nil
}

// Sign mints a token for sub that expires cfg.ExpirationMinutes after now.
func Sign(cfg config.JWTConfig, now time.Time, sub Subject) (string, error) {
	switch {
	case cfg.Secret == "" || cfg.Issuer == "":
		return "", errors.New("auth: jwt secret and issuer are required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("auth: expiration must be positive")
	case sub.UserID == uuid.Nil:
		return "", errors.New("auth: subject needs a user id")
	case !sub.Role.IsValid():
		return "", fmt.Errorf("auth: unknown role %q", sub.Role)
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := Claims{
		UserID: sub.UserID,
		Email:  sub.Email,
		Role:   sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   sub.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
