package auth

import "github.com/golang-jwt/jwt/v4"

// JWTClaims carries the wallet identity inside both access and refresh tokens.
type JWTClaims struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
	Type          string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
