package identity

import "time"

// Default TTLs for purpose tokens. Overridable per service instance.
var (
	// EmailConfirmationTTL bounds how long a confirmation link stays valid
	EmailConfirmationTTL = 24 * time.Hour
	// EmailChangeTTL bounds how long an email-change link stays valid
	EmailChangeTTL = 2 * time.Hour
	// PasswordResetTTL bounds how long a reset token stays valid
	PasswordResetTTL = 1 * time.Hour
)

// SimpleConfig is a plain struct implementation of Config. Load it once at
// startup; nothing in this package mutates it afterwards.
type SimpleConfig struct {
	SigningKey      string
	SigningMethod   string
	ContextKey      string
	TokenExpiration int
	TokenLookup     string
	AuthScheme      string
	Issuer          string
	Audience        []string
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c *SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

// GetTokenExpiration is the session token lifetime in minutes.
func (c *SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return 60
	}
	return c.TokenExpiration
}

func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *SimpleConfig) GetIssuer() string { return c.Issuer }

func (c *SimpleConfig) GetAudience() []string { return c.Audience }
