package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UpdateCredentialsMessage changes the password and profile of UserID.
// Password fields are optional, an empty NewPassword leaves it untouched.
type UpdateCredentialsMessage struct {
	UserID          string         `json:"-"`
	Actor           *IdentityClaim `json:"-"`
	OldPassword     string         `json:"oldPassword"`
	NewPassword     string         `json:"newPassword"`
	ConfirmPassword string         `json:"confirmPassword"`
	Profile         UserUpdate     `json:"-"`
	OnResponse      func(user *User)
}

func (e UpdateCredentialsMessage) Type() string { return "user.credentials.update" }

type UpdateCredentialsHandler struct {
	users     UserStore
	passwords PasswordAuthenticator
	logger    Logger
	activity  ActivitySink
}

func NewUpdateCredentialsHandler(users UserStore) *UpdateCredentialsHandler {
	return &UpdateCredentialsHandler{
		users:     users,
		passwords: BcryptPasswords{},
		logger:    defLogger{},
		activity:  noopActivitySink{},
	}
}

func (h *UpdateCredentialsHandler) WithLogger(logger Logger) *UpdateCredentialsHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateCredentialsHandler) WithActivitySink(sink ActivitySink) *UpdateCredentialsHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateCredentialsHandler) Execute(ctx context.Context, event UpdateCredentialsMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during credentials update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateCredentialsHandler) execute(ctx context.Context, event UpdateCredentialsMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := authorizeCredentialsUpdate(event); err != nil {
		return err
	}

	user, err := h.users.FindByID(ctx, event.UserID)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	passwordChanged := false
	if event.NewPassword != "" {
		if err := h.passwords.ComparePasswordAndHash(event.OldPassword, user.PasswordHash); err != nil {
			return err
		}

		if event.NewPassword != event.ConfirmPassword {
			return ErrPasswordMismatch
		}

		hash, err := h.passwords.HashPassword(event.NewPassword)
		if err != nil {
			return err
		}

		if err := h.users.UpdatePassword(ctx, event.UserID, hash); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}
		passwordChanged = true
	}

	if !event.Profile.IsEmpty() {
		if user, err = h.users.UpdateByID(ctx, event.UserID, event.Profile); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
		}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCredentialsUpdated,
		Actor:     ActorFromClaim(event.Actor),
		UserID:    event.UserID,
		Metadata: map[string]any{
			"password_changed": passwordChanged,
			"fields":           event.Profile.Columns(),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// authorizeCredentialsUpdate lets owners edit themselves and admins edit
// anyone. Only admins may change roles.
func authorizeCredentialsUpdate(event UpdateCredentialsMessage) error {
	if event.UserID == "" {
		return goerrors.New("user id is required", goerrors.CategoryBadInput)
	}

	if event.Actor == nil {
		return nil
	}

	if event.Actor.IsAdmin {
		return nil
	}

	if event.Actor.ID != event.UserID || event.Profile.Role != nil {
		return ErrPermissionDenied
	}

	return nil
}
