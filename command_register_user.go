package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	UserName   string `json:"userName"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Avatar     string `json:"avatar"`
	UseHashid  bool   `json:"-"`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User              *User
	VerificationToken string
}

type RegisterUserHandler struct {
	users     UserStore
	tokens    TokenService
	passwords PasswordAuthenticator
	mailer    Mailer
	verifyTTL time.Duration
	logger    Logger
	activity  ActivitySink
}

func NewRegisterUserHandler(users UserStore, tokens TokenService) *RegisterUserHandler {
	return &RegisterUserHandler{
		users:     users,
		tokens:    tokens,
		passwords: BcryptPasswords{},
		mailer:    noopMailer{},
		verifyTTL: DefaultVerificationTokenTTL,
		logger:    defLogger{},
		activity:  noopActivitySink{},
	}
}

// WithMailer sets the mailer that delivers the verification link
func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithVerificationTTL overrides the 1h verification token lifetime
func (h *RegisterUserHandler) WithVerificationTTL(ttl time.Duration) *RegisterUserHandler {
	if ttl > 0 {
		h.verifyTTL = ttl
	}
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)
	userName := getUsername(strings.TrimSpace(event.UserName), email)

	if err := h.ensureAvailable(ctx, userName, email); err != nil {
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

	user := &User{
		UserName:     userName,
		FullName:     strings.TrimSpace(event.FullName),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		Phone:        event.Phone,
		Address:      event.Address,
		Avatar:       event.Avatar,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	created, err := h.users.Create(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	resp := &RegisterUserResponse{User: created}

	token, err := h.tokens.IssueEphemeral(PurposeVerifyEmail, map[string]any{"email": created.Email}, h.verifyTTL)
	if err != nil {
		h.logger.Error("RegisterUser failed to issue verification token for %s: %v", created.Email, err)
	} else {
		resp.VerificationToken = token
		h.mailer.SendVerification(context.WithoutCancel(ctx), created.Email, token)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: created.ID.String(), Type: ActorTypeUser},
		UserID:    created.ID.String(),
		Metadata: map[string]any{
			"email":     created.Email,
			"user_name": created.UserName,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// ensureAvailable checks the user name first, then the email
func (h *RegisterUserHandler) ensureAvailable(ctx context.Context, userName, email string) error {
	if _, err := h.users.FindByUserName(ctx, userName); err == nil {
		return ErrUserNameTaken
	} else if !IsIdentityNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check user name")
	}

	if _, err := h.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !IsIdentityNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
