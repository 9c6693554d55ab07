package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Ticket   string `json:"ticket" doc:"Reset password ticket"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	users     UserStore
	tickets   ResetTickets
	passwords PasswordAuthenticator
	activity  ActivitySink
	logger    Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(users UserStore, tickets ResetTickets) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		users:     users,
		tickets:   tickets,
		passwords: BcryptPasswords{},
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute updates the password and then deletes the ticket. The two writes
// go to different stores, a failed delete is logged and the ticket is left
// to expire.
func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	identityID, err := h.tickets.ConsumeResetTicket(ctx, event.Ticket)
	if err != nil {
		return err
	}

	hash, err := h.passwords.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := h.users.UpdatePassword(ctx, identityID, hash); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if err := h.tickets.DeleteResetTicket(ctx, event.Ticket); err != nil {
		h.logger.Error("FinalizePasswordReset failed to delete ticket for %s: %v", identityID, err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     ActorRef{ID: identityID, Type: ActorTypeUser},
		UserID:    identityID,
	})

	return nil
}
