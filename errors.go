package identity

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced in error envelopes so clients can branch without
// parsing messages.
const (
	TextCodeInvalidCreds    = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword   = "EMPTY_PASSWORD"
	TextCodeWeakPassword    = "WEAK_PASSWORD"
	TextCodeEmailExists     = "EMAIL_EXISTS"
	TextCodeTokenExpired    = "TOKEN_EXPIRED"
	TextCodeTokenMalformed  = "TOKEN_MALFORMED"
	TextCodeTokenReplayed   = "TOKEN_ALREADY_USED"
	TextCodePurposeMismatch = "TOKEN_PURPOSE_MISMATCH"
	TextCodeSubjectMismatch = "TOKEN_SUBJECT_MISMATCH"
	TextCodeStaleRecord     = "CONCURRENT_MODIFICATION"
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	TextCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
)

// ErrMismatchedHashAndPassword is the single outcome for both unknown
// accounts and wrong passwords at login time, so callers cannot enumerate
// registered emails.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrWeakPassword rejects passwords that fail the configured policy
var ErrWeakPassword = goerrors.New("password must be at least 8 characters and contain a digit", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword)

// ErrTokenExpired covers both purpose tokens and session tokens past exp
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed covers undecodable tokens and bad signatures
var ErrTokenMalformed = goerrors.New("invalid or malformed token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrPurposeMismatch fires when a token is redeemed for a different purpose
// or against a different bound value than it was issued for
var ErrPurposeMismatch = goerrors.New("token was issued for a different purpose", goerrors.CategoryAuth).
	WithTextCode(TextCodePurposeMismatch)

// ErrSubjectMismatch fires when a token is redeemed by a different account
var ErrSubjectMismatch = goerrors.New("token was issued for a different account", goerrors.CategoryAuth).
	WithTextCode(TextCodeSubjectMismatch)

// ErrTokenReplayed fires when a redemption guard has already seen the token id
var ErrTokenReplayed = goerrors.New("token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenReplayed)

// ErrTooManyLoginAttempts fires when an account is in its login cooldown
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrDuplicateEmail maps unique-constraint rejections from the users store
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists)

// ErrConcurrentModification surfaces a store-reported write conflict, e.g.
// two redemptions of the same token racing on one account
var ErrConcurrentModification = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeStaleRecord)

// ErrAccountNotFound is the structured not-found signal from workflows. The
// HTTP boundary decides whether to leak it; login never does.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnableToFindSession is the error when our request has no token
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// IsTokenInvalidError reports whether err is any of the purpose-token
// validation failures. Boundaries collapse these into one generic message so
// responses never reveal which check failed.
func IsTokenInvalidError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrPurposeMismatch) ||
		errors.Is(err, ErrSubjectMismatch) ||
		errors.Is(err, ErrTokenReplayed)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
