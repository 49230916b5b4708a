package service

import (
	"testing"
	"time"

	"github.com/beka-birhanu/vinom-treasure/identity"
	"github.com/beka-birhanu/vinom-treasure/infrastruture/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignIn(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Treasure-hunting-at-dawn-7!"), bcrypt.MinCost)
	require.NoError(t, err)
	admin, err := identity.NewAdmin(string(hash))
	require.NoError(t, err)

	tokenizer := token.NewJwtService("k7#Vq9!zR2-wLp4@tY8m", "treasure-test")
	auth := NewAuth(admin, tokenizer)

	_, err = auth.SignIn("wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	tok, err := auth.SignIn("Treasure-hunting-at-dawn-7!")
	require.NoError(t, err)

	claims, err := tokenizer.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, AdminRole, claims["role"])
	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.InDelta(t, float64(time.Now().Add(adminTokenTTL).Unix()), exp, 5)
}
