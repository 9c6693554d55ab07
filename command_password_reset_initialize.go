package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResetTickets is the reset ticket half of the session store
type ResetTickets interface {
	IssueResetTicket(ctx context.Context, identityID string) (string, error)
	ConsumeResetTicket(ctx context.Context, ticket string) (string, error)
	DeleteResetTicket(ctx context.Context, ticket string) error
}

var _ ResetTickets = (*SessionStore)(nil)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse exposes the ticket to in process callers,
// the HTTP layer never returns it.
type InitializePasswordResetResponse struct {
	UserID  string
	Email   string
	Ticket  string
	Success bool
}

type InitializePasswordResetHandler struct {
	users    UserStore
	tickets  ResetTickets
	mailer   Mailer
	logger   Logger
	activity ActivitySink
}

func NewInitializePasswordResetHandler(users UserStore, tickets ResetTickets) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		users:    users,
		tickets:  tickets,
		mailer:   noopMailer{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithMailer sets the mailer that delivers the reset link
func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, NormalizeEmail(event.Email))
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	ticket, err := h.tickets.IssueResetTicket(ctx, user.ID.String())
	if err != nil {
		return err
	}

	h.mailer.SendPasswordReset(context.WithoutCancel(ctx), user.Email, ticket)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     ActorRef{ID: user.ID.String(), Type: ActorTypeUser},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			UserID:  user.ID.String(),
			Email:   user.Email,
			Ticket:  ticket,
			Success: true,
		})
	}

	return nil
}
