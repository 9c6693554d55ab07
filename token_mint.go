package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// PurposeVerifyEmail binds ephemeral tokens to the email verification flow
const PurposeVerifyEmail = "verify-email"

// IssueEphemeral mints a short lived self contained token for purpose.
// Zero ttl uses DefaultVerificationTokenTTL.
func (ts *TokenServiceImpl) IssueEphemeral(purpose string, payload map[string]any, ttl time.Duration) (string, error) {
	if purpose == "" {
		return "", goerrors.New("ephemeral token purpose is required", goerrors.CategoryBadInput)
	}

	if ttl < 0 {
		return "", goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	if ttl == 0 {
		ttl = DefaultVerificationTokenTTL
	}

	claims := &JWTClaims{
		RegisteredClaims: ts.registered("", ts.now(), ttl),
		Use:              tokenUseEphemeralPrefix + purpose,
	}

	if len(payload) > 0 {
		claims.Payload = make(map[string]any, len(payload))
		for k, v := range payload {
			claims.Payload[k] = v
		}
	}

	return ts.SignClaims(claims)
}

// ParseEphemeral validates a token minted by IssueEphemeral for the same
// purpose and returns its payload.
func (ts *TokenServiceImpl) ParseEphemeral(purpose, tokenString string) (map[string]any, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Use != tokenUseEphemeralPrefix+purpose {
		return nil, ErrTokenMalformed
	}

	if claims.Payload == nil {
		return map[string]any{}, nil
	}

	return claims.Payload, nil
}
