package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID uuid.UUID
	Role   enums.Role
}

type identityKey struct{}

// IdentityFrom returns the identity Auth stored on ctx.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) enums.Role {
	id, _ := IdentityFrom(ctx)
	return id.Role
}

// WithIdentity stores the caller on ctx. Handler tests use it directly.
func WithIdentity(ctx context.Context, userID uuid.UUID, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role})
}
