package identity

import (
	stderrors "errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// genericTokenError is the only thing token failures look like from the
// outside. Expired, malformed, wrong purpose, wrong subject and replayed all
// collapse into it.
const genericTokenError = "invalid or expired token"

// GetRouteSession pulls the validated session claims that the JWT middleware
// stored on the request.
func GetRouteSession(c *fiber.Ctx, key string) (AuthClaims, error) {
	local := c.Locals(key)
	if local == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := local.(AuthClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}

type AuthControllerRoutes struct {
	Register           string
	Login              string
	Logout             string
	ConfirmEmail       string
	ResendConfirmation string
	ChangeEmail        string
	ConfirmEmailChange string
	ResetPassword      string
	ConfirmReset       string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Tokens       *PurposeTokenService
	Mailer       Mailer
	Renderer     *MailRenderer
	Guard        RedemptionGuard
	Activity     ActivitySink
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerRepository sets the repository manager.
func WithControllerRepository(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithControllerAuthenticator sets the HTTP authenticator.
func WithControllerAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithControllerTokens sets the purpose token service.
func WithControllerTokens(tokens *PurposeTokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

// WithControllerMailer sets the mailer and link renderer.
func WithControllerMailer(mailer Mailer, renderer *MailRenderer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		c.Renderer = renderer
		return c
	}
}

// WithControllerRedemptionGuard enables single-use token enforcement.
func WithControllerRedemptionGuard(guard RedemptionGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

// WithControllerActivitySink sets the sink used for audit events.
func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Activity: noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Register:           "/auth/register",
			Login:              "/auth/login",
			Logout:             "/auth/logout",
			ConfirmEmail:       "/auth/confirm-email",
			ResendConfirmation: "/auth/resend-confirmation",
			ChangeEmail:        "/auth/change-email",
			ConfirmEmailChange: "/auth/confirm-email-change",
			ResetPassword:      "/auth/reset-password",
			ConfirmReset:       "/auth/confirm-reset-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing PurposeTokenService in auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in auth controller...")
	}

	if c.Renderer == nil {
		panic("Missing MailRenderer in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the identity endpoints. protected guards the
// routes that need an authenticated session; confirmation links arrive
// unauthenticated by design, the token itself is the credential.
func RegisterAuthRoutes(app fiber.Router, protected fiber.Handler, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.Register).Name("register.post")
	app.Post(controller.Routes.Login, controller.Login).Name("sign-in.post")
	app.Post(controller.Routes.Logout, controller.Logout).Name("sign-out.post")

	app.Get(controller.Routes.ConfirmEmail, controller.ConfirmEmail).Name("confirm-email.get")
	app.Get(controller.Routes.ConfirmEmailChange, controller.ConfirmEmailChange).Name("confirm-email-change.get")

	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).Name("pwd-reset.post")
	app.Post(controller.Routes.ConfirmReset, controller.ConfirmResetPassword).Name("pwd-reset-do.post")

	if protected != nil {
		app.Post(controller.Routes.ResendConfirmation, protected, controller.ResendConfirmation).Name("resend-confirmation.post")
		app.Post(controller.Routes.ChangeEmail, protected, controller.ChangeEmail).Name("change-email.post")
	}

	return controller
}

// RegistrationCreatePayload is the register request body
type RegistrationCreatePayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload. Password strength beyond presence is
// enforced by the hashing policy so the rules live in one place.
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *RegisterUserResponse
	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens, a.Mailer, a.Renderer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := registerUser.Execute(c.UserContext(), req); err != nil {
		a.Logger.Error("register user error: %v", err)
		return a.ErrorHandler(c, err)
	}

	body := fiber.Map{"status": "registered"}
	if res != nil && res.User != nil {
		body["user_id"] = res.User.ID.String()
		body["email"] = res.User.Email
	}

	return c.Status(fiber.StatusCreated).JSON(body)
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	token, expiresAt, err := a.Auther.Login(c, payload)
	if err != nil {
		// Unknown account and wrong password share this path and this body.
		a.Logger.Error("login error: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_in": int64(expiresAt.Sub(nowFunc()).Seconds()),
	})
}

// nowFunc is swapped in tests that pin expires_in.
var nowFunc = time.Now

func (a *AuthController) Logout(c *fiber.Ctx) error {
	a.Auther.Logout(c)
	return c.JSON(fiber.Map{"status": "logged_out"})
}

func (a *AuthController) ConfirmEmail(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	token := c.Query("token")

	if userID == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": genericTokenError,
		})
	}

	confirm := NewConfirmEmailHandler(a.Repo, a.Tokens).
		WithRedemptionGuard(a.Guard).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := confirm.Execute(c.UserContext(), ConfirmEmailMessage{
		UserID: userID,
		Token:  token,
	}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{"status": "email_confirmed"})
}

// ResendConfirmation mails a new confirmation token to the authenticated
// account's current email.
func (a *AuthController) ResendConfirmation(c *fiber.Ctx) error {
	claims, err := GetRouteSession(c, a.contextKey())
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	var res *AccountVerificationResponse
	req := AccountVerificationMesage{
		Identifier: claims.UserID(),
		OnResponse: func(resp *AccountVerificationResponse) {
			res = resp
		},
	}

	resend := NewAccountVerificationHandler(a.Repo, a.Tokens, a.Mailer, a.Renderer).
		WithLogger(a.Logger)

	if err := resend.Execute(c.UserContext(), req); err != nil {
		return a.ErrorHandler(c, err)
	}

	body := fiber.Map{"status": "confirmation_sent"}
	if res != nil && res.AlreadyConfirmed {
		body["already_confirmed"] = true
	}

	return c.JSON(body)
}

// ChangeEmailPayload is the change-email request body
type ChangeEmailPayload struct {
	NewEmail string `json:"new_email"`
}

// Validate will validate the payload
func (r ChangeEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, validation.Length(6, 100), is.Email),
	)
}

func (a *AuthController) ChangeEmail(c *fiber.Ctx) error {
	claims, err := GetRouteSession(c, a.contextKey())
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	payload := new(ChangeEmailPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	change := NewInitializeEmailChangeHandler(a.Repo, a.Tokens, a.Mailer, a.Renderer).
		WithLogger(a.Logger)

	if err := change.Execute(c.UserContext(), InitializeEmailChangeMessage{
		UserID:   claims.UserID(),
		NewEmail: payload.NewEmail,
	}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{"status": "confirmation_sent"})
}

func (a *AuthController) ConfirmEmailChange(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	email := c.Query("email")
	token := c.Query("token")

	if userID == "" || email == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": genericTokenError,
		})
	}

	finalize := NewFinalizeEmailChangeHandler(a.Repo, a.Tokens).
		WithRedemptionGuard(a.Guard).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalize.Execute(c.UserContext(), FinalizeEmailChangeMessage{
		UserID:   userID,
		NewEmail: email,
		Token:    token,
	}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{"status": "email_changed"})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// ResetPassword always answers the same way for known and unknown emails.
func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(PasswordResetRequestPayload)

	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Tokens, a.Mailer, a.Renderer).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(c.UserContext(), InitializePasswordResetMessage{
		Email: payload.Email,
	}); err != nil {
		a.Logger.Error("password reset error: %v", err)
	}

	return c.JSON(fiber.Map{
		"status": "If the email is registered, a reset link has been sent",
	})
}

// PasswordResetVerifyPayload holds values for password reset
type PasswordResetVerifyPayload struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Token,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) ConfirmResetPassword(c *fiber.Ctx) error {
	payload := new(PasswordResetVerifyPayload)

	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).
		WithRedemptionGuard(a.Guard).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(c.UserContext(), FinalizePasswordResetMesasge{
		Email:    payload.Email,
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{"status": "password_reset"})
}

func (a *AuthController) contextKey() string {
	return "user"
}

// defaultErrHandler maps workflow errors to JSON responses. All purpose-token
// failures answer with the same generic message and status regardless of why
// the token was rejected.
func (a *AuthController) defaultErrHandler(c *fiber.Ctx, err error) error {
	if IsTokenInvalidError(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": genericTokenError,
		})
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	status := fiber.StatusInternalServerError
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		status = fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		status = fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		status = fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		status = fiber.StatusNotFound
	case goerrors.CategoryConflict:
		status = fiber.StatusConflict
	case goerrors.CategoryRateLimit:
		status = fiber.StatusTooManyRequests
	}

	body := fiber.Map{"error": richErr.Message}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	return c.Status(status).JSON(body)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["error"] = err.Error()
	}

	return out
}
