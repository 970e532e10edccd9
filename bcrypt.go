package identity

import (
	"errors"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Password policy knobs. The workflow surfaces policy failures as
// ErrWeakPassword; it does not re-implement validation elsewhere.
var (
	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 8
	// PasswordRequiresDigit demands at least one numeric rune
	PasswordRequiresDigit = true
	// BcryptCost is the work factor used for new hashes
	BcryptCost = 14
)

// ValidatePassword applies the password policy to a cleartext candidate.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrNoEmptyString
	}

	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	if PasswordRequiresDigit {
		hasDigit := false
		for _, r := range password {
			if unicode.IsDigit(r) {
				hasDigit = true
				break
			}
		}
		if !hasDigit {
			return ErrWeakPassword
		}
	}

	return nil
}

// HashPassword will validate the password against policy and generate a hash
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
