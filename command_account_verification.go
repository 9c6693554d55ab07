package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AccountVerificationMessage struct {
	Token      string `json:"token"`
	OnResponse func(user *User)
}

func (e AccountVerificationMessage) Type() string { return "user.verify_email" }

type AccountVerificationHandler struct {
	users    UserStore
	tokens   TokenService
	logger   Logger
	activity ActivitySink
}

func NewAccountVerificationHandler(users UserStore, tokens TokenService) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		users:    users,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *AccountVerificationHandler) WithActivitySink(sink ActivitySink) *AccountVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	payload, err := h.tokens.ParseEphemeral(PurposeVerifyEmail, event.Token)
	if err != nil {
		h.logger.Debug("AccountVerification rejected token: %v", err)
		return wrapAs(ErrTicketInvalid, err)
	}

	email, _ := payload["email"].(string)
	if email == "" {
		return ErrTicketInvalid
	}

	user, err := h.users.MarkVerified(ctx, email)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify account")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     ActorRef{ID: user.ID.String(), Type: ActorTypeUser},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
