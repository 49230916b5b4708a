package i

import (
	"time"
)

// Tokenizer issues and verifies the bearer tokens of the admin API.
type Tokenizer interface {
	// Generate signs claims into a token that expires after ttl.
	Generate(claims map[string]interface{}, ttl time.Duration) (string, error)

	// Decode verifies a token, including its expiry and issuer, and returns its claims.
	Decode(token string) (map[string]interface{}, error)
}
