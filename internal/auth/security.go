// Package auth implements account flows (signup, login, email verification,
// password reset) and stateless access-token resolution.
package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production PasswordHasher.
type bcryptHasher struct {
	cost int
}

// NewBcryptHasher builds the production hasher. Costs below the bcrypt
// minimum fall back to the library default.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CanonicalizeEmail lowercases and trims an email address so lookups and
// uniqueness behave case-insensitively.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
