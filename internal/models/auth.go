package models

// LoginRequest represents an operator login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}
