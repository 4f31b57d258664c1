package views

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
}

type Settings struct {
	Theme pkg.Theme `json:"theme" binding:"required,oneof=dark light"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
