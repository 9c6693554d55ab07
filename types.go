package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetResetTicketTTL() time.Duration
	GetStoreTimeout() time.Duration
	GetContextKey() string
	GetAuthScheme() string
}

// UserUpdate carries the partial fields accepted by UpdateByID.
// Nil fields are left untouched.
type UserUpdate struct {
	FullName *string
	Phone    *string
	Address  *string
	Avatar   *string
	Role     *Role
}

// UserStore is the persistent user record collaborator
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUserName(ctx context.Context, userName string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateByID(ctx context.Context, id string, update UserUpdate) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, email string) (*User, error)
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*User, error)
}

// Mailer delivers account emails. Delivery is fire and forget.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string)
	SendPasswordReset(ctx context.Context, email, ticket string)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopMailer struct{}

func (noopMailer) SendVerification(context.Context, string, string)  {}
func (noopMailer) SendPasswordReset(context.Context, string, string) {}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
