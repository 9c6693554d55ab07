package auth

// TokenValidator verifies access tokens without tying callers to a
// specific signing implementation.
type TokenValidator interface {
	Verify(tokenString string) (*IdentityClaim, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (*IdentityClaim, error)

// Verify satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Verify(tokenString string) (*IdentityClaim, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}
