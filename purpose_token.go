package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPurpose scopes a verification token to one operation kind. A token
// issued for one purpose never validates for another.
type TokenPurpose string

const (
	// PurposeEmailConfirmation confirms control of the account's current email
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	// PurposeEmailChange confirms control of a new target email. The target
	// is pinned as the token's bound value.
	PurposeEmailChange TokenPurpose = "email_change"
	// PurposePasswordReset authorizes a password rewrite
	PurposePasswordReset TokenPurpose = "password_reset"
)

// PurposeClaims is the decoded payload of a purpose token.
type PurposeClaims struct {
	jwt.RegisteredClaims
	Purpose TokenPurpose `json:"purpose"`
	Bind    string       `json:"bind,omitempty"`
}

// TokenID returns the jti nonce, used by redemption guards for single-use
// enforcement.
func (c *PurposeClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// SubjectID returns the account id the token is bound to.
func (c *PurposeClaims) SubjectID() string {
	return c.RegisteredClaims.Subject
}

// ExpiresAt returns the absolute expiry instant.
func (c *PurposeClaims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// PurposeTokenService issues and validates purpose-scoped verification
// tokens. Tokens are stateless HS256 JWTs over the shared signing key: a
// fresh jti guarantees two Issue calls never return the same string, and
// validation is a pure function of the token and the wall clock. Single-use
// enforcement beyond natural expiry is delegated to a RedemptionGuard at the
// workflow layer.
type PurposeTokenService struct {
	signingKey []byte
	logger     Logger
	// now is swapped in tests to exercise expiry windows
	now func() time.Time
}

// NewPurposeTokenService creates a codec over the process-wide signing key.
func NewPurposeTokenService(signingKey []byte) *PurposeTokenService {
	return &PurposeTokenService{
		signingKey: signingKey,
		logger:     defLogger{},
		now:        time.Now,
	}
}

// WithLogger overrides the logger used by the service.
func (s *PurposeTokenService) WithLogger(logger Logger) *PurposeTokenService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source. Intended for tests.
func (s *PurposeTokenService) WithClock(now func() time.Time) *PurposeTokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Now returns the service's time source. Redemption guards use it to size
// their tombstone TTLs against token expiry.
func (s *PurposeTokenService) Now() time.Time {
	return s.now()
}

// Issue mints a token for the given purpose, bound to subjectID and, when
// non-empty, to boundValue (the email-change target). Two calls with
// identical inputs produce different tokens.
func (s *PurposeTokenService) Issue(purpose TokenPurpose, subjectID, boundValue string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("purpose token requires a subject id")
	}

	now := s.now()
	claims := &PurposeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
		Bind:    boundValue,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign purpose token: %w", err)
	}

	return signed, nil
}

// Validate decodes tokenString and checks it against the expected purpose,
// subject, and bound value. It returns the claims on success; on failure one
// of ErrTokenExpired, ErrTokenMalformed, ErrPurposeMismatch, or
// ErrSubjectMismatch. Validation mutates nothing.
func (s *PurposeTokenService) Validate(purpose TokenPurpose, subjectID, tokenString, boundValue string) (*PurposeClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &PurposeClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("purpose token with unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*PurposeClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Purpose != purpose {
		return nil, ErrPurposeMismatch
	}

	if claims.Subject != subjectID {
		return nil, ErrSubjectMismatch
	}

	if claims.Bind != boundValue {
		return nil, ErrPurposeMismatch
	}

	return claims, nil
}
