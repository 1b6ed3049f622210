package httpx

import (
	"context"

	"github.com/orgstack/identity/pkg/jwtx"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
)

// WithClaims stashes verified session claims on the context. Set by the
// authentication middleware; handlers read through the accessors below.
func WithClaims(ctx context.Context, claims *jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// ClaimsFromContext returns the verified claims, or nil on unauthenticated
// routes.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	claims, _ := ctx.Value(ctxKeyClaims).(*jwtx.Claims)
	return claims
}

// AccountIDFromContext returns the authenticated account id, empty when
// unauthenticated.
func AccountIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

// TenantIDFromContext returns the authenticated tenant id, empty when
// unauthenticated.
func TenantIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.TenantID
	}
	return ""
}

// RoleFromContext returns the authenticated role, empty when unauthenticated.
func RoleFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Role
	}
	return ""
}
