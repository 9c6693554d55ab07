package mailer

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/template/django/v3"
	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

//go:embed templates
var templatesFS embed.FS

const (
	TemplateVerifyEmail   = "verify_email"
	TemplateResetPassword = "reset_password"

	DefaultRoutePrefix   = "/api/v1/users"
	DefaultSendTimeout   = 30 * time.Second
	DefaultVerifySubject = "Verify your email"
	DefaultResetSubject  = "Reset your password"
)

// Config for TemplateMailer
type Config struct {
	From        string
	PublicURL   string
	RoutePrefix string
	// VerificationTTL and ResetTTL are only shown to the recipient
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	SendTimeout     time.Duration
	Logger          auth.Logger
}

// TemplateMailer renders account emails from the embedded django
// templates and hands them to a Transport in the background.
type TemplateMailer struct {
	engine    *django.Engine
	transport Transport
	config    Config
	logger    auth.Logger
	wg        sync.WaitGroup
}

var _ auth.Mailer = (*TemplateMailer)(nil)

func New(transport Transport, cfg Config) (*TemplateMailer, error) {
	if transport == nil {
		return nil, goerrors.New("mail transport is required", goerrors.CategoryBadInput).
			WithTextCode(auth.TextCodeConfiguration)
	}

	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open email templates")
	}

	engine := django.NewFileSystem(http.FS(sub), ".django")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	if cfg.RoutePrefix == "" {
		cfg.RoutePrefix = DefaultRoutePrefix
	}

	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = auth.DefaultVerificationTokenTTL
	}

	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = auth.DefaultResetTicketTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &TemplateMailer{
		engine:    engine,
		transport: transport,
		config:    cfg,
		logger:    logger,
	}, nil
}

// VerificationLink is the URL sent in verification emails
func (m *TemplateMailer) VerificationLink(token string) string {
	return m.link("verify-email", token)
}

// ResetLink is the URL sent in password reset emails
func (m *TemplateMailer) ResetLink(ticket string) string {
	return m.link("reset-password", ticket)
}

func (m *TemplateMailer) SendVerification(ctx context.Context, email, token string) {
	m.dispatch(ctx, email, DefaultVerifySubject, TemplateVerifyEmail, map[string]any{
		"email":   email,
		"link":    m.VerificationLink(token),
		"expires": m.config.VerificationTTL.String(),
	})
}

func (m *TemplateMailer) SendPasswordReset(ctx context.Context, email, ticket string) {
	m.dispatch(ctx, email, DefaultResetSubject, TemplateResetPassword, map[string]any{
		"email":   email,
		"link":    m.ResetLink(ticket),
		"expires": m.config.ResetTTL.String(),
	})
}

// Render executes the named template
func (m *TemplateMailer) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}

// Wait blocks until every queued email was handed to the transport
func (m *TemplateMailer) Wait() {
	m.wg.Wait()
}

func (m *TemplateMailer) dispatch(ctx context.Context, to, subject, template string, data map[string]any) {
	body, err := m.Render(template, data)
	if err != nil {
		m.logger.Error("mailer render %s for %s failed: %v", template, to, err)
		return
	}

	msg := Message{
		From:    m.config.From,
		To:      to,
		Subject: subject,
		Body:    body,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.SendTimeout)
		defer cancel()

		if err := m.transport.Send(ctx, msg); err != nil {
			m.logger.Error("mailer send %s to %s failed: %v", template, to, err)
			return
		}
		m.logger.Debug("mailer sent %s to %s", template, to)
	}()
}

func (m *TemplateMailer) link(action, value string) string {
	base := strings.TrimRight(m.config.PublicURL, "/")
	prefix := "/" + strings.Trim(m.config.RoutePrefix, "/")
	return base + prefix + "/" + action + "/" + value
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
