package identity

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/middleware/jwtware"
)

// HTTPAuthenticator is the surface the HTTP controller needs from the
// session layer.
type HTTPAuthenticator interface {
	Login(c *fiber.Ctx, payload LoginPayload) (string, time.Time, error)
	Logout(c *fiber.Ctx)
	ProtectedRoute(cfg Config, errorHandler fiber.ErrorHandler) fiber.Handler
}

type RouteAuthenticator struct {
	auth           Authenticator
	validator      TokenValidator
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   fiber.ErrorHandler
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Minute
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	if tp, ok := auther.(interface{ TokenService() TokenService }); ok {
		a.validator = tp.TokenService()
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// WithTokenValidator overrides the validator used by protected routes.
func (a *RouteAuthenticator) WithTokenValidator(validator TokenValidator) *RouteAuthenticator {
	if validator != nil {
		a.validator = validator
	}
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute builds the JWT middleware for routes that require a valid
// session token.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler fiber.ErrorHandler) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		TokenValidator: tokenValidatorAdapter{a.validator},
	})
}

// VerifiedEmailRoute is ProtectedRoute plus the confirmed-email policy: the
// session's email_verified claim must have been "true" at login time.
func (a *RouteAuthenticator) VerifiedEmailRoute(cfg Config, errorHandler fiber.ErrorHandler) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler:         errorHandler,
		AuthScheme:           cfg.GetAuthScheme(),
		ContextKey:           cfg.GetContextKey(),
		TokenLookup:          cfg.GetTokenLookup(),
		TokenValidator:       tokenValidatorAdapter{a.validator},
		RequireVerifiedEmail: true,
	})
}

// Login authenticates the payload and sets the session cookie. The token and
// its absolute expiry are returned for JSON responses.
func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload) (string, time.Time, error) {
	token, expiresAt, err := a.auth.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", time.Time{}, err
	}

	a.setCookieToken(c, token, a.cookieDuration)
	return token, expiresAt, nil
}

func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.cookieDel(c, a.cfg.GetContextKey())
}

// MakeClientRouteAuthErrorHandler normalizes middleware failures. With
// optional set the request proceeds unauthenticated instead of failing.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return c.Next()
		}

		return a.ErrorHandler(c, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error: %s text_code=%s path=%s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Invalid or expired token",
	})
}

// tokenValidatorAdapter bridges the identity claims interface into the
// middleware's import-cycle-free mirror of it.
type tokenValidatorAdapter struct {
	validator TokenValidator
}

func (t tokenValidatorAdapter) Validate(raw string) (jwtware.AuthClaims, error) {
	if t.validator == nil {
		return nil, ErrUnableToDecodeSession
	}

	claims, err := t.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	return claims, nil
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)
