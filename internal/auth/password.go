package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts. Longer passwords
// make GenerateFromPassword fail with bcrypt.ErrPasswordTooLong.
const MaxPasswordBytes = 72

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordLongEnough counts runes, not bytes.
func PasswordLongEnough(password string, minLength int) bool {
	return utf8.RuneCountInString(password) >= minLength
}

// PasswordShortEnough counts bytes, since that is what bcrypt limits.
func PasswordShortEnough(password string) bool {
	return len(password) <= MaxPasswordBytes
}
