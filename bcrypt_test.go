package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2a$"), "expected a bcrypt hash, got %q", hash)
	assert.NotContains(t, hash, "secret1")
	assert.NoError(t, auth.ComparePasswordAndHash("secret1", hash))

	again, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	hash, err := auth.HashPassword("")
	assert.Empty(t, hash)
	assert.Equal(t, auth.ErrNoEmptyString, err)
}

func TestComparePasswordAndHashFailures(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)

	err = auth.ComparePasswordAndHash("secret2", hash)
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)

	err = auth.ComparePasswordAndHash("secret1", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.True(t, auth.IsInvalidCredentials(err))
}

func TestBcryptPasswords(t *testing.T) {
	var passwords auth.PasswordAuthenticator = auth.BcryptPasswords{}

	hash, err := passwords.HashPassword("newpass1")
	require.NoError(t, err)
	assert.NoError(t, passwords.ComparePasswordAndHash("newpass1", hash))
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, passwords.ComparePasswordAndHash("secret1", hash))
}

func TestRandomPasswordHashIsUnguessable(t *testing.T) {
	first := auth.RandomPasswordHash()
	second := auth.RandomPasswordHash()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.Error(t, auth.ComparePasswordAndHash("", first))
}
