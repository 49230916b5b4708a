package identity

import (
	"errors"

	"github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

const minSecretStrengthScore = 3

var (
	ErrWeakSecret  = errors.New("secret is too weak")
	ErrMissingHash = errors.New("admin password hash is not configured")
)

// Admin is the single operator account of the server's HTTP API.
type Admin struct {
	passwordHash string
}

// NewAdmin creates the admin from a bcrypt hash.
func NewAdmin(passwordHash string) (*Admin, error) {
	if passwordHash == "" {
		return nil, ErrMissingHash
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, err
	}
	return &Admin{passwordHash: passwordHash}, nil
}

// VerifyPassword verifies if the given password matches the stored hash.
func (a *Admin) VerifyPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password))
	return err == nil
}

// HashPassword hashes a plain password after checking its strength.
func HashPassword(password string) (string, error) {
	if err := ValidateSecret(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidateSecret rejects passwords and signing secrets that are easy to guess.
func ValidateSecret(secret string) error {
	result := zxcvbn.PasswordStrength(secret, nil)
	if result.Score < minSecretStrengthScore {
		return ErrWeakSecret
	}
	return nil
}
