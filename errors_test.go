package identity_test

import (
	"errors"
	"testing"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured token expired error",
			err:      identity.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      identity.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := identity.IsTokenExpiredError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured malformed error",
			err:      identity.ErrTokenMalformed,
			expected: true,
		},
		{
			name:     "Legacy malformed error (string match)",
			err:      errors.New("token is malformed"),
			expected: true,
		},
		{
			name:     "Legacy missing JWT error (string match)",
			err:      errors.New("missing or malformed JWT"),
			expected: true,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := identity.IsMalformedError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsTokenInvalidError(t *testing.T) {
	invalid := []error{
		identity.ErrTokenExpired,
		identity.ErrTokenMalformed,
		identity.ErrPurposeMismatch,
		identity.ErrSubjectMismatch,
		identity.ErrTokenReplayed,
	}

	for _, err := range invalid {
		assert.True(t, identity.IsTokenInvalidError(err), "expected %v to be a token failure", err)
	}

	assert.False(t, identity.IsTokenInvalidError(nil))
	assert.False(t, identity.IsTokenInvalidError(identity.ErrDuplicateEmail))
	assert.False(t, identity.IsTokenInvalidError(errors.New("other")))
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrMismatchedHashAndPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrMismatchedHashAndPassword.Category)
		assert.Equal(t, identity.TextCodeInvalidCreds, identity.ErrMismatchedHashAndPassword.TextCode)
	})

	t.Run("ErrTooManyLoginAttempts", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryRateLimit, identity.ErrTooManyLoginAttempts.Category)
		assert.Equal(t, identity.TextCodeTooManyAttempts, identity.ErrTooManyLoginAttempts.TextCode)
	})

	t.Run("ErrNoEmptyString", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, identity.ErrNoEmptyString.Category)
		assert.Equal(t, identity.TextCodeEmptyPassword, identity.ErrNoEmptyString.TextCode)
	})

	t.Run("ErrWeakPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, identity.ErrWeakPassword.Category)
		assert.Equal(t, identity.TextCodeWeakPassword, identity.ErrWeakPassword.TextCode)
	})

	t.Run("ErrTokenExpired", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrTokenExpired.Category)
		assert.Equal(t, identity.TextCodeTokenExpired, identity.ErrTokenExpired.TextCode)
	})

	t.Run("ErrTokenReplayed", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, identity.ErrTokenReplayed.Category)
		assert.Equal(t, identity.TextCodeTokenReplayed, identity.ErrTokenReplayed.TextCode)
	})

	t.Run("ErrDuplicateEmail", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, identity.ErrDuplicateEmail.Category)
		assert.Equal(t, identity.TextCodeEmailExists, identity.ErrDuplicateEmail.TextCode)
	})

	t.Run("ErrConcurrentModification", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, identity.ErrConcurrentModification.Category)
		assert.Equal(t, identity.TextCodeStaleRecord, identity.ErrConcurrentModification.TextCode)
	})

	t.Run("ErrAccountNotFound", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, identity.ErrAccountNotFound.Category)
		assert.Equal(t, identity.TextCodeAccountNotFound, identity.ErrAccountNotFound.TextCode)
	})
}
