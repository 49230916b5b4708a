package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{name: "empty", secret: "", wantErr: ErrWeakSecret},
		{name: "dictionary word", secret: "password", wantErr: ErrWeakSecret},
		{name: "keyboard walk", secret: "qwerty123", wantErr: ErrWeakSecret},
		{name: "long passphrase", secret: "correct-Horse-battery-Staple-42!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAdmin(t *testing.T) {
	password := "Treasure-hunting-at-dawn-7!"

	hash, err := HashPassword(password)
	require.NoError(t, err)

	admin, err := NewAdmin(hash)
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		assert.True(t, admin.VerifyPassword(password))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.False(t, admin.VerifyPassword("Treasure-hunting-at-dusk-7!"))
	})

	t.Run("weak password is not hashed", func(t *testing.T) {
		_, err := HashPassword("abc")
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("missing or broken hash", func(t *testing.T) {
		_, err := NewAdmin("")
		assert.ErrorIs(t, err, ErrMissingHash)

		_, err = NewAdmin("not-a-bcrypt-hash")
		assert.Error(t, err)
	})
}
