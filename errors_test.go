package auth_test

import (
	"errors"
	"net/http"
	"testing"

	auth "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"configuration":  {auth.ErrConfiguration, http.StatusInternalServerError},
		"malformed":      {auth.ErrTokenMalformed, http.StatusUnauthorized},
		"expired":        {auth.ErrTokenExpired, http.StatusUnauthorized},
		"not found":      {auth.ErrIdentityNotFound, http.StatusNotFound},
		"bad password":   {auth.ErrMismatchedHashAndPassword, http.StatusUnauthorized},
		"mismatch":       {auth.ErrPasswordMismatch, http.StatusBadRequest},
		"ticket":         {auth.ErrTicketInvalid, http.StatusBadRequest},
		"permission":     {auth.ErrPermissionDenied, http.StatusForbidden},
		"store":          {auth.ErrStoreUnavailable, http.StatusServiceUnavailable},
		"missing token":  {auth.ErrMissingToken, http.StatusUnauthorized},
		"blacklisted":    {auth.ErrTokenBlacklisted, http.StatusUnauthorized},
		"superseded":     {auth.ErrSessionSuperseded, http.StatusUnauthorized},
		"auth failed":    {auth.ErrAuthenticationFailed, http.StatusForbidden},
		"email taken":    {auth.ErrEmailTaken, http.StatusConflict},
		"username taken": {auth.ErrUserNameTaken, http.StatusConflict},
		"throttled":      {auth.ErrTooManyLoginAttempts, http.StatusTooManyRequests},
		"plain error":    {errors.New("boom"), http.StatusInternalServerError},
		"nil error":      {nil, http.StatusInternalServerError},
		"empty password": {auth.ErrNoEmptyString, http.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.status, auth.HTTPStatus(tc.err))
		})
	}
}

func TestStoreUnavailableIsTheOnlyRetryableKind(t *testing.T) {
	assert.True(t, auth.IsStoreUnavailable(auth.ErrStoreUnavailable))
	assert.False(t, auth.IsStoreUnavailable(auth.ErrTokenExpired))
	assert.False(t, auth.IsStoreUnavailable(errors.New("connection refused")))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.False(t, auth.IsTokenExpiredError(nil))
	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsMalformedError(nil))
	assert.True(t, auth.IsIdentityNotFound(auth.ErrIdentityNotFound))
	assert.True(t, auth.IsInvalidCredentials(auth.ErrMismatchedHashAndPassword))
	assert.True(t, auth.IsPasswordMismatch(auth.ErrPasswordMismatch))
	assert.True(t, auth.IsTicketInvalid(auth.ErrTicketInvalid))
	assert.True(t, auth.IsPermissionDenied(auth.ErrPermissionDenied))
	assert.True(t, auth.IsTooManyAttempts(auth.ErrTooManyLoginAttempts))
	assert.True(t, auth.IsConfigurationError(auth.ErrConfiguration))
	assert.False(t, auth.IsConfigurationError(errors.New("x")))
	assert.Equal(t, "", auth.ErrorTextCode(errors.New("x")))
}
