package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key claims are stored under
const DefaultContextKey = "user"

var claimsCtxKey = &contextKey{"claims"}
var tokenCtxKey = &contextKey{"token"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the identity claim in the given context
func WithClaimsContext(ctx context.Context, claim *IdentityClaim) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claim)
}

// GetClaims extracts the identity claim from the standard context
func GetClaims(ctx context.Context) (*IdentityClaim, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*IdentityClaim)
	return raw, ok && raw != nil
}

// WithTokenContext keeps the raw access token that admitted the request
func WithTokenContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

// GetToken returns the raw access token stored by WithTokenContext
func GetToken(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(tokenCtxKey).(string)
	return raw, ok && raw != ""
}

// GetRouterClaims extracts the identity claim from the router context
func GetRouterClaims(ctx router.Context, key string) (*IdentityClaim, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claim, ok := raw.(*IdentityClaim)
	return claim, ok && claim != nil
}
