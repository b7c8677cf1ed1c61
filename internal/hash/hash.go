package hash

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Cost matches the work factor the frontend-facing API has always used.
const Cost = 12

const specialChars = "@$!%*?&"

var ErrWeakPassword = errors.New(
	"Password must be at least 8 characters long and include at least one uppercase letter, one lowercase letter, one number, and one special character (@$!%*?&).",
)

func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePolicy reports ErrWeakPassword unless the password is at
// least 8 characters drawn solely from [A-Za-z0-9@$!%*?&] and contains
// one lowercase letter, one uppercase letter, one digit and one of
// @$!%*?&. Go's regexp has no lookahead, so the classes are scanned
// directly. The upper bound keeps the input inside bcrypt's 72-byte
// limit.
func ValidatePolicy(password string) error {
	if len(password) < 8 || len(password) > 72 {
		return ErrWeakPassword
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		default:
			// anything outside the allowed alphabet fails the policy
			return ErrWeakPassword
		}
	}
	if !lower || !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
