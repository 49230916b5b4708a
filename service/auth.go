package service

import (
	"errors"
	"time"

	"github.com/beka-birhanu/vinom-treasure/identity"
	"github.com/beka-birhanu/vinom-treasure/service/i"
)

const (
	AdminRole     = "admin"
	adminTokenTTL = time.Hour
)

var ErrInvalidCredential = errors.New("invalid password")

var _ i.Authenticator = &Auth{}

// Auth signs the operator in and hands out admin tokens.
type Auth struct {
	admin     *identity.Admin
	tokenizer i.Tokenizer
}

func NewAuth(admin *identity.Admin, tokenizer i.Tokenizer) *Auth {
	return &Auth{
		admin:     admin,
		tokenizer: tokenizer,
	}
}

func (a *Auth) SignIn(password string) (string, error) {
	if !a.admin.VerifyPassword(password) {
		return "", ErrInvalidCredential
	}

	return a.tokenizer.Generate(map[string]interface{}{
		"role": AdminRole,
	}, adminTokenTTL)
}
