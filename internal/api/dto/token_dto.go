package dto

import "time"

// UserLoginRequest payload for POST /token_user.
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by both token endpoints.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewBearerToken builds a TokenResponse of type Bearer.
func NewBearerToken(token string, expiresAt time.Time) TokenResponse {
	return TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}
}
