package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

const (
	RefreshTokenCookie = "refreshToken"
	DefaultRoutePrefix = "/api/v1/users"
	defaultPhoneRegion = "US"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Envelope is the body of every response
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Path       string `json:"path,omitempty"`
}

// HTTPConfig wires the controller. Guard builds the admission middleware
// for a role set, usually authgate.Guard.
type HTTPConfig struct {
	Auther            *Auther
	Users             UserStore
	Register          *RegisterUserHandler
	Verify            *AccountVerificationHandler
	InitializeReset   *InitializePasswordResetHandler
	FinalizeReset     *FinalizePasswordResetHandler
	UpdateCredentials *UpdateCredentialsHandler
	Guard             func(roles ...Role) router.MiddlewareFunc

	ContextKey    string
	RefreshTTL    time.Duration
	SecureCookies bool
	UseHashid     bool
	Debug         bool
	Logger        Logger
	// ErrorReporter receives errors answered with a 5xx status
	ErrorReporter func(ctx router.Context, err error)
}

// HTTPController serves the account API
type HTTPController struct {
	config HTTPConfig
	logger Logger
}

func NewHTTPController(cfg HTTPConfig) *HTTPController {
	if cfg.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if cfg.Users == nil {
		panic("Missing UserStore in auth controller...")
	}

	if cfg.Register == nil || cfg.Verify == nil || cfg.InitializeReset == nil ||
		cfg.FinalizeReset == nil || cfg.UpdateCredentials == nil {
		panic("Missing command handlers in auth controller...")
	}

	if cfg.Guard == nil {
		panic("Missing Guard in auth controller...")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}

	return &HTTPController{
		config: cfg,
		logger: normalizeLogger(cfg.Logger),
	}
}

// RegisterRoutes mounts the account routes on group
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	anyone := c.config.Guard(RoleUser, RoleAdmin)
	admin := c.config.Guard(RoleAdmin)

	group.Post("/register", c.Register)
	group.Post("/login", c.Login)
	group.Post("/logout", c.Logout, anyone)
	group.Get("/verify-email/:token", c.VerifyEmail)
	group.Post("/forget-password", c.ForgetPassword)
	group.Post("/reset-password/:token", c.ResetPassword)
	group.Get("/me", c.Me, anyone)
	group.Put("/me", c.UpdateMe, anyone)
	group.Get("/", c.List, admin)
	group.Delete("/:id", c.Delete, admin)
}

// RegisterRequest payload
type RegisterRequest struct {
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Avatar   string `json:"avatar"`
}

func (r RegisterRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.UserName, validation.Required, validation.Length(6, 30)),
			validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
			validation.Field(&r.Phone, phoneRules()...),
			validation.Field(&r.Address, validation.Length(0, 255)),
			validation.Field(&r.Avatar, is.URL),
		)
	}, "Invalid registration payload")
}

func (c *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse payload")
	}

	if err := payload.Validate(); err != nil {
		return c.validationFailed(ctx, err)
	}

	c.debug("REGISTER", payload)

	var resp *RegisterUserResponse
	err := c.config.Register.Execute(ctx.Context(), RegisterUserMessage{
		UserName:  payload.UserName,
		FullName:  payload.FullName,
		Email:     payload.Email,
		Password:  payload.Password,
		Phone:     payload.Phone,
		Address:   payload.Address,
		Avatar:    payload.Avatar,
		UseHashid: c.config.UseHashid,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	var user *User
	if resp != nil {
		user = resp.User
	}

	return c.respond(ctx, http.StatusCreated, "user registered successfully", user)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}, "Invalid login request payload")
}

func (c *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse payload")
	}

	if err := payload.Validate(); err != nil {
		return c.validationFailed(ctx, err)
	}

	pair, err := c.config.Auther.Authenticate(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		c.logger.Info("Login rejected for %s: %s", payload.Email, ErrorTextCode(err))
		switch {
		case IsTooManyAttempts(err), IsStoreUnavailable(err):
			return c.writeError(ctx, err)
		default:
			return c.writeError(ctx, ErrAuthenticationFailed)
		}
	}

	ctx.Cookie(c.refreshCookie(pair.RefreshToken, time.Now().Add(c.config.RefreshTTL)))

	return c.respond(ctx, router.StatusOK, "user logged in successfully", map[string]any{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"iat":          pair.IssuedAt,
		"exp":          pair.ExpiresAt,
	})
}

func (c *HTTPController) Logout(ctx router.Context) error {
	token, ok := GetToken(ctx.Context())
	if !ok {
		token, _ = ExtractBearerToken(ctx.GetString(router.HeaderAuthorization, ""), DefaultAuthScheme)
	}

	if err := c.config.Auther.Logout(ctx.Context(), token); err != nil {
		return c.writeError(ctx, err)
	}

	ctx.Cookie(c.refreshCookie("", time.Unix(0, 0)))

	return c.respond(ctx, router.StatusOK, "user logged out successfully", nil)
}

func (c *HTTPController) VerifyEmail(ctx router.Context) error {
	var verified *User
	err := c.config.Verify.Execute(ctx.Context(), AccountVerificationMessage{
		Token: ctx.Param("token"),
		OnResponse: func(user *User) {
			verified = user
		},
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return c.respond(ctx, router.StatusOK, "email verified successfully", verified)
}

// PasswordResetRequest payload
type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (r PasswordResetRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
		)
	}, "Invalid password reset payload")
}

const resetRequestedMessage = "if the email exists, check your email for a reset link"

func (c *HTTPController) ForgetPassword(ctx router.Context) error {
	payload := new(PasswordResetRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse payload")
	}

	if err := payload.Validate(); err != nil {
		return c.validationFailed(ctx, err)
	}

	err := c.config.InitializeReset.Execute(ctx.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	})
	if err != nil {
		if !IsIdentityNotFound(err) {
			return c.writeError(ctx, err)
		}
		c.logger.Debug("ForgetPassword unknown email %s", payload.Email)
	}

	return c.respond(ctx, router.StatusOK, resetRequestedMessage, nil)
}

// PasswordResetFinalizeRequest payload
type PasswordResetFinalizeRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r PasswordResetFinalizeRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
			validation.Field(&r.ConfirmPassword, validation.By(ValidateStringEquals(r.Password))),
		)
	}, "Invalid password reset payload")
}

func (c *HTTPController) ResetPassword(ctx router.Context) error {
	payload := new(PasswordResetFinalizeRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse payload")
	}

	if err := payload.Validate(); err != nil {
		return c.validationFailed(ctx, err)
	}

	err := c.config.FinalizeReset.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Ticket:   ctx.Param("token"),
		Password: payload.Password,
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return c.respond(ctx, router.StatusOK, "password reset successfully", nil)
}

func (c *HTTPController) Me(ctx router.Context) error {
	claim, ok := GetRouterClaims(ctx, c.config.ContextKey)
	if !ok {
		return c.writeError(ctx, ErrMissingToken)
	}

	user, err := c.config.Users.FindByID(ctx.Context(), claim.ID)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return c.respond(ctx, router.StatusOK, "user fetched successfully", user)
}

// UpdateProfileRequest payload. Empty fields are left untouched.
type UpdateProfileRequest struct {
	FullName        string `json:"fullName"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	Avatar          string `json:"avatar"`
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r UpdateProfileRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.FullName, validation.Length(1, 200)),
			validation.Field(&r.Phone, phoneRules()...),
			validation.Field(&r.Address, validation.Length(0, 255)),
			validation.Field(&r.Avatar, is.URL),
			validation.Field(&r.OldPassword, validation.When(r.NewPassword != "", validation.Required)),
			validation.Field(&r.NewPassword, validation.Length(6, 100)),
		)
	}, "Invalid profile payload")
}

// Update converts the non empty profile fields
func (r UpdateProfileRequest) Update() UserUpdate {
	update := UserUpdate{}
	if r.FullName != "" {
		update.FullName = &r.FullName
	}
	if r.Phone != "" {
		update.Phone = &r.Phone
	}
	if r.Address != "" {
		update.Address = &r.Address
	}
	if r.Avatar != "" {
		update.Avatar = &r.Avatar
	}
	return update
}

func (c *HTTPController) UpdateMe(ctx router.Context) error {
	claim, ok := GetRouterClaims(ctx, c.config.ContextKey)
	if !ok {
		return c.writeError(ctx, ErrMissingToken)
	}

	payload := new(UpdateProfileRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse payload")
	}

	if err := payload.Validate(); err != nil {
		return c.validationFailed(ctx, err)
	}

	var updated *User
	err := c.config.UpdateCredentials.Execute(ctx.Context(), UpdateCredentialsMessage{
		UserID:          claim.ID,
		Actor:           claim,
		OldPassword:     payload.OldPassword,
		NewPassword:     payload.NewPassword,
		ConfirmPassword: payload.ConfirmPassword,
		Profile:         payload.Update(),
		OnResponse: func(user *User) {
			updated = user
		},
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return c.respond(ctx, router.StatusOK, "user updated successfully", updated)
}

func (c *HTTPController) List(ctx router.Context) error {
	users, err := c.config.Users.List(ctx.Context())
	if err != nil {
		return c.writeError(ctx, err)
	}
	return c.respond(ctx, router.StatusOK, "users fetched successfully", users)
}

func (c *HTTPController) Delete(ctx router.Context) error {
	if err := c.config.Users.SoftDelete(ctx.Context(), ctx.Param("id")); err != nil {
		return c.writeError(ctx, err)
	}
	return c.respond(ctx, router.StatusOK, "user deleted successfully", nil)
}

func (c *HTTPController) refreshCookie(value string, expires time.Time) *router.Cookie {
	return &router.Cookie{
		Name:     RefreshTokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   c.config.SecureCookies,
		HTTPOnly: true,
		SameSite: "Strict",
	}
}

func (c *HTTPController) respond(ctx router.Context, status int, message string, data any) error {
	return ctx.JSON(status, Envelope{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func (c *HTTPController) badRequest(ctx router.Context, message string) error {
	return c.respond(ctx, router.StatusBadRequest, message, nil)
}

func (c *HTTPController) validationFailed(ctx router.Context, err *goerrors.Error) error {
	return c.respond(ctx, router.StatusBadRequest, err.Message, err.ValidationMap())
}

func (c *HTTPController) writeError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := HTTPStatus(richErr)
	if status >= 500 {
		c.logger.Error("request failed: %s %s", richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
		if c.config.ErrorReporter != nil {
			c.config.ErrorReporter(ctx, err)
		}
	}

	return c.respond(ctx, status, richErr.Message, nil)
}

func (c *HTTPController) debug(label string, payload any) {
	if !c.config.Debug {
		return
	}
	c.logger.Debug("======= AUTH %s ======\n%s", label, print.MaybePrettyJSON(payload))
}

func phoneRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(0, 10),
		is.Digit,
		validation.By(ValidatePhoneNumber(defaultPhoneRegion)),
	}
}

// ValidatePhoneNumber accepts empty values and numbers phonenumbers can parse
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := phonenumbers.Parse(s, region); err != nil {
			return fmt.Errorf("must be a valid phone number: %w", err)
		}
		return nil
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
