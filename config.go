package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Options is the environment backed configuration of the auth service
type Options struct {
	SigningKey           string        `env:"AUTH_SIGNING_KEY"`
	Issuer               string        `env:"AUTH_ISSUER" envDefault:"go-auth-session"`
	Audience             []string      `env:"AUTH_AUDIENCE" envSeparator:","`
	AccessTokenTTL       time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"168h"`
	RefreshTokenTTL      time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	VerificationTokenTTL time.Duration `env:"AUTH_VERIFICATION_TOKEN_TTL" envDefault:"1h"`
	ResetTicketTTL       time.Duration `env:"AUTH_RESET_TICKET_TTL" envDefault:"15m"`
	StoreTimeout         time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"2s"`
	ContextKey           string        `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	AuthScheme           string        `env:"AUTH_SCHEME" envDefault:"Bearer"`
	UseHashid            bool          `env:"AUTH_USE_HASHID"`

	LoginAttemptsPerMinute int `env:"AUTH_LOGIN_ATTEMPTS_PER_MINUTE" envDefault:"10"`
	LoginBurst             int `env:"AUTH_LOGIN_BURST" envDefault:"5"`

	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":3000"`
	PublicURL   string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`

	SentryDSN string `env:"SENTRY_DSN"`
}

var _ Config = (*Options)(nil)

// LoadOptions reads Options from the process environment
func LoadOptions() (*Options, error) {
	return parseOptions(env.Options{})
}

// MustLoadOptions panics when the options can not be loaded
func MustLoadOptions() *Options {
	cfg, err := LoadOptions()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadOptionsFrom reads Options from the given variables only
func LoadOptionsFrom(environment map[string]string) (*Options, error) {
	return parseOptions(env.Options{Environment: environment})
}

func parseOptions(opts env.Options) (*Options, error) {
	cfg := &Options{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid auth options").
			WithTextCode(TextCodeConfiguration).
			WithCode(goerrors.CodeInternal)
	}

	if cfg.SigningKey == "" {
		return nil, ErrConfiguration
	}

	return cfg, nil
}

// IsProduction toggles secure cookies
func (o Options) IsProduction() bool {
	return o.Environment == "production"
}

func (o Options) GetSigningKey() string                  { return o.SigningKey }
func (o Options) GetIssuer() string                      { return o.Issuer }
func (o Options) GetAudience() []string                  { return o.Audience }
func (o Options) GetAccessTokenTTL() time.Duration       { return o.AccessTokenTTL }
func (o Options) GetRefreshTokenTTL() time.Duration      { return o.RefreshTokenTTL }
func (o Options) GetVerificationTokenTTL() time.Duration { return o.VerificationTokenTTL }
func (o Options) GetResetTicketTTL() time.Duration       { return o.ResetTicketTTL }
func (o Options) GetStoreTimeout() time.Duration         { return o.StoreTimeout }
func (o Options) GetContextKey() string                  { return o.ContextKey }
func (o Options) GetAuthScheme() string                  { return o.AuthScheme }
