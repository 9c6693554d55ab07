package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenUseAccess          = "access"
	tokenUseRefresh         = "refresh"
	tokenUseEphemeralPrefix = "ephemeral:"
)

// IdentityClaim is the minimal view of a user embedded in access tokens
type IdentityClaim struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
	IsAdmin  bool   `json:"isAdmin"`
}

// TokenPair is the result of a successful sign in.
// IssuedAt and ExpiresAt describe the access token, in epoch seconds.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// JWTClaims is the payload of every token we sign. Use tells access,
// refresh and ephemeral tokens apart so one can not stand in for another.
type JWTClaims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	UserName string         `json:"userName,omitempty"`
	IsAdmin  bool           `json:"isAdmin,omitempty"`
	Use      string         `json:"use"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Identity returns the identity claim carried by an access token
func (c *JWTClaims) Identity() *IdentityClaim {
	return &IdentityClaim{
		ID:       c.Subject,
		Email:    c.Email,
		UserName: c.UserName,
		IsAdmin:  c.IsAdmin,
	}
}

// IdentityFromUser builds the claim used for token issuance
func IdentityFromUser(user *User) IdentityClaim {
	return IdentityClaim{
		ID:       user.ID.String(),
		Email:    user.Email,
		UserName: user.UserName,
		IsAdmin:  user.Role == RoleAdmin,
	}
}

// ensureTokenID gives every token a unique jti so two tokens minted within
// the same second for the same identity still differ.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
