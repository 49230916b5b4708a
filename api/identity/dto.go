package identity

// AuthRequest carries the operator password.
type AuthRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued bearer token.
type AuthResponse struct {
	Token string `json:"token"`
}
