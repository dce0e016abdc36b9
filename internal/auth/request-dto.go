package auth

// NonceRequest asks for a fresh login nonce for a wallet.
type NonceRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,min=32,max=44"`
}

// WalletLoginRequest carries a signed login message. The signature is the
// base58-encoded ed25519 signature of Message produced by the wallet, and
// Message must embed the nonce previously issued for this wallet.
type WalletLoginRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,min=32,max=44"`
	Message       string `json:"message" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
}

// AdminLoginRequest is the email/password login used by admin accounts only.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
