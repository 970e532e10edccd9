package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured session claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	UserEmail() string
	IsEmailVerified() bool
	UserRoles() []string
	HasRole(role string) bool
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// SessionClaims is the concrete implementation of AuthClaims. The claim
// names (sub, name, email, jti, iat, email_verified, roles) are the
// interoperability surface shared with other consumers of these tokens;
// email_verified is a boolean-as-string.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name          string   `json:"name,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified string   `json:"email_verified"`
	Roles         []string `json:"roles,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*SessionClaims)(nil)

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, which for locally issued tokens is the subject
func (c *SessionClaims) UserID() string {
	return c.Subject()
}

// Username returns the name claim
func (c *SessionClaims) Username() string {
	return c.Name
}

// UserEmail returns the email claim
func (c *SessionClaims) UserEmail() string {
	return c.Email
}

// IsEmailVerified reports the email_verified claim as captured at login
// time. It is never live-updated.
func (c *SessionClaims) IsEmailVerified() bool {
	return c.EmailVerified == "true"
}

// UserRoles returns the role strings attached at login time
func (c *SessionClaims) UserRoles() []string {
	return c.Roles
}

// HasRole checks if the session carries a specific role
func (c *SessionClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenID returns the jti claim, unique per minted credential
func (c *SessionClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
