package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrPasswordTooShort indicates the supplied password is below the minimum length.
	ErrPasswordTooShort = errors.New("auth: password must be at least 8 characters")
	// ErrPasswordMismatch indicates the supplied password does not match the stored hash.
	ErrPasswordMismatch = errors.New("auth: password mismatch")
)

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword compares a stored bcrypt hash against a candidate password.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
