package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, time.Time, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// Identity holds the attributes of an identity. EmailVerified reflects the
// account's confirmation state at the moment the identity was loaded; tokens
// minted from it keep that snapshot for their whole lifetime.
type Identity interface {
	ID() string
	Username() string
	Email() string
	EmailVerified() bool
}

// Config holds identity options. The signing key is loaded once at startup
// and shared between issuer and validator; it is never mutated afterwards.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// RoleProvider supplies the role strings attached to a session token at login
// time. Roles come from whatever authorization source is configured, not from
// the identity record itself.
type RoleProvider interface {
	FindRoles(ctx context.Context, identity Identity) ([]string, error)
}

// StaticRoleProvider attaches the same fixed role set to every login.
type StaticRoleProvider struct {
	Roles []string
}

// FindRoles implements RoleProvider.
func (p StaticRoleProvider) FindRoles(context.Context, Identity) ([]string, error) {
	return p.Roles, nil
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers outbound messages. Implementations report delivery failure
// through the returned error; workflows treat that as non-fatal but log it.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
