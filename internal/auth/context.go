package auth

import (
	"context"

	"dbugate/internal/models"
)

type ctxKey string

const claimsKey ctxKey = "operatorClaims"

// Claims is the authenticated operator identity attached to every gate and
// admin call.
type Claims struct {
	OperatorID uint
	Username   string
	Role       string
}

func (c Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(claimsKey).(Claims); ok {
		return v
	}
	return Claims{}
}

// OperatorID returns the authenticated operator's id, zero if unauthenticated.
func OperatorID(ctx context.Context) uint {
	return FromContext(ctx).OperatorID
}
