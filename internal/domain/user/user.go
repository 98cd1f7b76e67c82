package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	Active       bool
	CreatedAt    time.Time
}

// NewUser validates the registration data and hashes the password.
func NewUser(username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, errors.NewValidationError("username", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.NewValidationError("email", "is not a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, errors.NewValidationError("password", "must have at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}

// CheckPassword compares password against the stored hash. Inactive users never match.
func (u *User) CheckPassword(password string) bool {
	if !u.Active {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
