package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultAccessTokenTTL       = 7 * 24 * time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
	DefaultVerificationTokenTTL = time.Hour
)

// TokenService creates and parses signed tokens. It never consults a store.
type TokenService interface {
	Issue(claim IdentityClaim) (*TokenPair, error)
	Verify(tokenString string) (*IdentityClaim, error)
	VerifyRefresh(tokenString string) (string, error)
	IssueEphemeral(purpose string, payload map[string]any, ttl time.Duration) (string, error)
	ParseEphemeral(purpose, tokenString string) (map[string]any, error)
	ExpiresAt(tokenString string) (time.Time, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance.
// Zero TTLs fall back to the 7 day access and 30 day refresh lifetimes.
func NewTokenService(signingKey []byte, accessTTL, refreshTTL time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		audience:   audience,
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}
}

// NewTokenServiceFromConfig fails with ErrConfiguration when no signing key is set
func NewTokenServiceFromConfig(cfg Config, logger Logger) (*TokenServiceImpl, error) {
	if cfg.GetSigningKey() == "" {
		return nil, ErrConfiguration
	}
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenTTL(),
		cfg.GetRefreshTokenTTL(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger,
	), nil
}

// WithClock overrides the time source used for issuance and validation
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// AccessTTL is the lifetime given to access tokens
func (ts *TokenServiceImpl) AccessTTL() time.Duration {
	return ts.accessTTL
}

// Issue mints an access and refresh token pair for claim
func (ts *TokenServiceImpl) Issue(claim IdentityClaim) (*TokenPair, error) {
	if len(ts.signingKey) == 0 {
		return nil, ErrConfiguration
	}

	now := ts.now()
	access := &JWTClaims{
		RegisteredClaims: ts.registered(claim.ID, now, ts.accessTTL),
		Email:            claim.Email,
		UserName:         claim.UserName,
		IsAdmin:          claim.IsAdmin,
		Use:              tokenUseAccess,
	}

	refresh := &JWTClaims{
		RegisteredClaims: ts.registered(claim.ID, now, ts.refreshTTL),
		Use:              tokenUseRefresh,
	}

	accessToken, err := ts.SignClaims(access)
	if err != nil {
		return nil, err
	}

	refreshToken, err := ts.SignClaims(refresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IssuedAt:     access.IssuedAt.Unix(),
		ExpiresAt:    access.ExpiresAt.Unix(),
	}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	if len(ts.signingKey) == 0 {
		return "", ErrConfiguration
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify validates an access token and returns its identity claim
func (ts *TokenServiceImpl) Verify(tokenString string) (*IdentityClaim, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Use != tokenUseAccess || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims.Identity(), nil
}

// VerifyRefresh validates a refresh token and returns the identity id
func (ts *TokenServiceImpl) VerifyRefresh(tokenString string) (string, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return "", err
	}

	if claims.Use != tokenUseRefresh || claims.Subject == "" {
		return "", ErrTokenMalformed
	}

	return claims.Subject, nil
}

// ExpiresAt decodes the exp claim without checking the signature.
// Callers use it to size TTLs of tokens they already hold.
func (ts *TokenServiceImpl) ExpiresAt(tokenString string) (time.Time, error) {
	claims := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, wrapAs(ErrTokenMalformed, err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenMalformed
	}

	return claims.ExpiresAt.Time, nil
}

func (ts *TokenServiceImpl) parse(tokenString string) (*JWTClaims, error) {
	if len(ts.signingKey) == 0 {
		return nil, ErrConfiguration
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFunc, ts.parserOptions()...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrapAs(ErrTokenExpired, err)
		}
		return nil, wrapAs(ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		ts.logger.Warn("TokenService unexpected signing method: %v", t.Header["alg"])
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.signingKey, nil
}

func (ts *TokenServiceImpl) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience[0]))
	}
	return opts
}

func (ts *TokenServiceImpl) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   subject,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	ensureTokenID(&claims)
	return claims
}
