package auth

import (
	"context"
	"strings"
)

// DefaultAuthScheme is the scheme expected in the Authorization header
const DefaultAuthScheme = "Bearer"

// SessionChecker is the stateful half of the admission check
type SessionChecker interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	IsCurrentSession(ctx context.Context, identityID, token string) (bool, error)
}

// AuthGate decides whether a request may proceed. The token is checked
// cryptographically first and then against the session store, a token can
// be well formed and still revoked.
type AuthGate struct {
	tokens     TokenValidator
	sessions   SessionChecker
	authScheme string
	logger     Logger
}

func NewAuthGate(tokens TokenValidator, sessions SessionChecker) *AuthGate {
	return &AuthGate{
		tokens:     tokens,
		sessions:   sessions,
		authScheme: DefaultAuthScheme,
		logger:     defLogger{},
	}
}

// WithAuthScheme overrides the expected header scheme
func (g *AuthGate) WithAuthScheme(scheme string) *AuthGate {
	if scheme = strings.TrimSpace(scheme); scheme != "" {
		g.authScheme = scheme
	}
	return g
}

// AuthScheme is the scheme expected in the Authorization header
func (g *AuthGate) AuthScheme() string {
	return g.authScheme
}

// WithLogger overrides the logger
func (g *AuthGate) WithLogger(logger Logger) *AuthGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Check runs the admission steps against an Authorization header value and
// returns the claim on success.
func (g *AuthGate) Check(ctx context.Context, authorization string, roles ...Role) (*IdentityClaim, error) {
	token, ok := ExtractBearerToken(authorization, g.authScheme)
	if !ok {
		return nil, ErrMissingToken
	}
	return g.CheckToken(ctx, token, roles...)
}

// CheckToken runs the admission steps on a raw token
func (g *AuthGate) CheckToken(ctx context.Context, token string, roles ...Role) (*IdentityClaim, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	blacklisted, err := g.sessions.IsBlacklisted(ctx, token)
	if err != nil {
		g.logger.Error("AuthGate blacklist lookup failed, denying: %v", err)
		return nil, asStoreUnavailable(err)
	}

	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	claim, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.Debug("AuthGate token verification failed: %v", err)
		return nil, wrapAs(ErrAuthenticationFailed, err)
	}

	current, err := g.sessions.IsCurrentSession(ctx, claim.ID, token)
	if err != nil {
		g.logger.Error("AuthGate session lookup failed, denying: %v", err)
		return nil, asStoreUnavailable(err)
	}

	if !current {
		return nil, ErrSessionSuperseded
	}

	if !HasAnyRole(claim, roles...) {
		return nil, ErrPermissionDenied
	}

	return claim, nil
}

// ExtractBearerToken returns the token from "<scheme> <token>"
func ExtractBearerToken(authorization, scheme string) (string, bool) {
	if scheme == "" {
		scheme = DefaultAuthScheme
	}

	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func asStoreUnavailable(err error) error {
	if IsStoreUnavailable(err) {
		return err
	}
	return storeUnavailable(err)
}
