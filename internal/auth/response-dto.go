package auth

import "time"

type NonceResponse struct {
	WalletAddress string `json:"wallet_address"`
	Nonce         string `json:"nonce"`
	ExpiresIn     int64  `json:"expires_in"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}
