// Package authgate wraps auth.AuthGate as a go-router middleware.
package authgate

import (
	"context"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-router"
)

// Gate is the admission check, implemented by *auth.AuthGate
type Gate interface {
	Check(ctx context.Context, authorization string, roles ...auth.Role) (*auth.IdentityClaim, error)
	AuthScheme() string
}

// Config for the middleware. Gate is required.
type Config struct {
	Gate           Gate
	Roles          []auth.Role
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	// HeaderName defaults to Authorization
	HeaderName string
	// ContextKey is the locals key the claim is stored under, default "user"
	ContextKey string
	// TokenContextKey is the locals key the raw token is stored under
	TokenContextKey string
}

// New returns a middleware that admits requests passing Gate.Check with
// the configured roles.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx, hf)
			}

			header := ctx.GetString(cfg.HeaderName, "")
			claim, err := cfg.Gate.Check(ctx.Context(), header, cfg.Roles...)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claim)

			stdCtx := auth.WithClaimsContext(ctx.Context(), claim)
			if token, ok := auth.ExtractBearerToken(header, cfg.Gate.AuthScheme()); ok {
				ctx.Locals(cfg.TokenContextKey, token)
				stdCtx = auth.WithTokenContext(stdCtx, token)
			}
			ctx.SetContext(stdCtx)

			if cfg.SuccessHandler != nil {
				return cfg.SuccessHandler(ctx)
			}
			return next(ctx, hf)
		}
	}
}

// Guard returns a factory producing one middleware per role set, all
// sharing base.
func Guard(base Config) func(roles ...auth.Role) router.MiddlewareFunc {
	return func(roles ...auth.Role) router.MiddlewareFunc {
		cfg := base
		cfg.Roles = append([]auth.Role(nil), roles...)
		return New(cfg)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Gate == nil {
		panic("AUTH: authgate middleware configuration: Gate is required.")
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = router.HeaderAuthorization
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = auth.DefaultContextKey
	}

	if cfg.TokenContextKey == "" {
		cfg.TokenContextKey = cfg.ContextKey + "_token"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	return cfg
}

// DefaultErrorHandler answers with the error's status in the JSON envelope
func DefaultErrorHandler(ctx router.Context, err error) error {
	status := auth.HTTPStatus(err)
	return ctx.JSON(status, map[string]any{
		"statusCode": status,
		"message":    message(err),
	})
}

func message(err error) string {
	switch {
	case auth.IsStoreUnavailable(err):
		return auth.ErrStoreUnavailable.Message
	case auth.IsPermissionDenied(err):
		return auth.ErrPermissionDenied.Message
	}

	switch auth.ErrorTextCode(err) {
	case auth.TextCodeMissingToken:
		return auth.ErrMissingToken.Message
	case auth.TextCodeTokenBlacklisted:
		return auth.ErrTokenBlacklisted.Message
	case auth.TextCodeSessionSuperseded:
		return auth.ErrSessionSuperseded.Message
	default:
		return auth.ErrAuthenticationFailed.Message
	}
}

func next(ctx router.Context, hf router.HandlerFunc) error {
	if hf != nil {
		return hf(ctx)
	}
	return ctx.Next()
}
