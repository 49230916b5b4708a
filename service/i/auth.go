package i

// Authenticator signs administrators in.
type Authenticator interface {
	// SignIn checks the password and returns a bearer token.
	SignIn(password string) (string, error)
}
