package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfiguration     = "AUTH_CONFIGURATION"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodePasswordMismatch  = "PASSWORD_MISMATCH"
	TextCodeTicketInvalid     = "TICKET_INVALID"
	TextCodePermissionDenied  = "PERMISSION_DENIED"
	TextCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	TextCodeMissingToken      = "MISSING_TOKEN"
	TextCodeTokenBlacklisted  = "TOKEN_BLACKLISTED"
	TextCodeSessionSuperseded = "SESSION_SUPERSEDED"
	TextCodeAuthFailed        = "AUTHENTICATION_FAILED"
	TextCodeEmailTaken        = "EMAIL_TAKEN"
	TextCodeUserNameTaken     = "USERNAME_TAKEN"
	TextCodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
)

// ErrConfiguration is returned when the signing secret is missing
var ErrConfiguration = goerrors.New("signing secret is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeConfiguration).
	WithCode(goerrors.CodeInternal)

// ErrTokenMalformed covers bad signatures and undecodable payloads
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiration
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when the password does not match
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrPasswordMismatch new and confirmation passwords differ
var ErrPasswordMismatch = goerrors.New("password confirmation does not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrTicketInvalid reset or verification ticket is unknown, expired or used
var ErrTicketInvalid = goerrors.New("token is invalid or expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTicketInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrPermissionDenied authenticated caller lacks the required role
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodePermissionDenied).
	WithCode(goerrors.CodeForbidden)

// ErrStoreUnavailable is the only retryable kind
var ErrStoreUnavailable = goerrors.New("session store unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

var ErrMissingToken = goerrors.New("missing token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenBlacklisted = goerrors.New("token blacklisted", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenBlacklisted).
	WithCode(goerrors.CodeUnauthorized)

var ErrSessionSuperseded = goerrors.New("session expired or superseded", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionSuperseded).
	WithCode(goerrors.CodeUnauthorized)

// ErrAuthenticationFailed is the generic message used at the HTTP boundary
var ErrAuthenticationFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeForbidden)

var ErrEmailTaken = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

var ErrUserNameTaken = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserNameTaken).
	WithCode(goerrors.CodeConflict)

// ErrTooManyLoginAttempts is returned by the login throttle
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password can not be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// wrapAs returns a new error of the same kind as sentinel with cause attached.
func wrapAs(sentinel *goerrors.Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	wrapped := goerrors.Wrap(cause, sentinel.Category, sentinel.Message)
	wrapped.Category = sentinel.Category
	wrapped.Message = sentinel.Message
	wrapped.TextCode = sentinel.TextCode
	wrapped.Code = sentinel.Code
	return wrapped
}

func storeUnavailable(cause error) error {
	return wrapAs(ErrStoreUnavailable, cause)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

func IsConfigurationError(err error) bool { return hasTextCode(err, TextCodeConfiguration) }
func IsIdentityNotFound(err error) bool   { return hasTextCode(err, TextCodeIdentityNotFound) }
func IsInvalidCredentials(err error) bool { return hasTextCode(err, TextCodeInvalidCreds) }
func IsPasswordMismatch(err error) bool   { return hasTextCode(err, TextCodePasswordMismatch) }
func IsTicketInvalid(err error) bool      { return hasTextCode(err, TextCodeTicketInvalid) }
func IsPermissionDenied(err error) bool   { return hasTextCode(err, TextCodePermissionDenied) }
func IsStoreUnavailable(err error) bool   { return hasTextCode(err, TextCodeStoreUnavailable) }
func IsTooManyAttempts(err error) bool    { return hasTextCode(err, TextCodeTooManyAttempts) }

// ErrorTextCode returns the text code of the outermost rich error, if any.
func ErrorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// HTTPStatus resolves the status code carried by err, defaulting to 500.
func HTTPStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}
