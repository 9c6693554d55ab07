package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

// Message is a rendered email
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Bytes encodes the message as an RFC 5322 HTML email
func (m Message) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(m.Body)
	return buf.Bytes()
}

// Transport delivers rendered messages
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the logger, useful in development
type LogTransport struct {
	logger auth.Logger
}

func NewLogTransport(logger auth.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	if t.logger == nil {
		return nil
	}
	t.logger.Info("mail to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport relays messages through an SMTP server with PLAIN auth
type SMTPTransport struct {
	addr string
	auth smtp.Auth
	send SendFunc
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, goerrors.New("smtp host is required", goerrors.CategoryBadInput).
			WithTextCode(auth.TextCodeConfiguration)
	}

	if cfg.Port == 0 {
		cfg.Port = 587
	}

	t := &SMTPTransport{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		send: smtp.SendMail,
	}

	if cfg.Username != "" {
		t.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return t, nil
}

// WithSendFunc replaces smtp.SendMail
func (t *SMTPTransport) WithSendFunc(send SendFunc) *SMTPTransport {
	if send != nil {
		t.send = send
	}
	return t
}

// Addr is the host:port messages are relayed to
func (t *SMTPTransport) Addr() string {
	return t.addr
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.send(t.addr, t.auth, msg.From, []string{msg.To}, msg.Bytes()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithMetadata(map[string]any{
				"addr": t.addr,
				"to":   msg.To,
			})
	}
	return nil
}
