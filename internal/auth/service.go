package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"

	"mintix/internal/shared/config"
	"mintix/internal/users"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidWallet      = errors.New("invalid wallet address")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrNonceMismatch      = errors.New("message does not contain the issued nonce")
)

type Service interface {
	IssueNonce(ctx context.Context, req *NonceRequest) (*NonceResponse, error)
	WalletLogin(ctx context.Context, req *WalletLoginRequest) (*AuthResponse, error)
	AdminLogin(ctx context.Context, req *AdminLoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	ValidateToken(tokenString string) (*JWTClaims, error)
}

type service struct {
	repo   Repository
	config *config.Config
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		config: cfg,
	}
}

func (s *service) IssueNonce(ctx context.Context, req *NonceRequest) (*NonceResponse, error) {
	if _, err := decodeWallet(req.WalletAddress); err != nil {
		return nil, ErrInvalidWallet
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	nonce := hex.EncodeToString(buf)

	if err := s.repo.StoreNonce(ctx, req.WalletAddress, nonce, s.config.Redis.NonceTTL); err != nil {
		return nil, err
	}

	return &NonceResponse{
		WalletAddress: req.WalletAddress,
		Nonce:         nonce,
		ExpiresIn:     int64(s.config.Redis.NonceTTL.Seconds()),
	}, nil
}

func (s *service) WalletLogin(ctx context.Context, req *WalletLoginRequest) (*AuthResponse, error) {
	pubKey, err := decodeWallet(req.WalletAddress)
	if err != nil {
		return nil, ErrInvalidWallet
	}

	nonce, err := s.repo.GetNonce(ctx, req.WalletAddress)
	if err != nil {
		if errors.Is(err, ErrNonceNotFound) {
			return nil, ErrNonceMismatch
		}
		return nil, err
	}
	if !strings.Contains(req.Message, nonce) {
		return nil, ErrNonceMismatch
	}

	sig, err := base58.Decode(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, ErrInvalidSignature
	}
	if !ed25519.Verify(pubKey, []byte(req.Message), sig) {
		return nil, ErrInvalidSignature
	}

	// Single-use: a replayed message must fail even inside the nonce TTL.
	if err := s.repo.DeleteNonce(ctx, req.WalletAddress); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByWallet(ctx, req.WalletAddress)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		user = &users.User{
			WalletAddress: req.WalletAddress,
			Role:          users.RoleUser,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID.String()); err != nil {
		return nil, err
	}

	tokenPair, err := s.generateTokenPair(user.ID.String(), user.WalletAddress, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) AdminLogin(ctx context.Context, req *AdminLoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsAdmin() || user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID.String()); err != nil {
		return nil, err
	}

	tokenPair, err := s.generateTokenPair(user.ID.String(), user.WalletAddress, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	// Verify user still exists
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(user.ID.String(), user.WalletAddress, string(user.Role))
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return s.validateToken(tokenString)
}

func (s *service) generateTokenPair(userID, wallet, role string) (*TokenPair, error) {
	now := time.Now()

	accessClaims := JWTClaims{
		UserID:        userID,
		WalletAddress: wallet,
		Role:          role,
		Type:          "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.JWTExpiresIn)),
			Issuer:    "mintix",
			Subject:   userID,
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := JWTClaims{
		UserID:        userID,
		WalletAddress: wallet,
		Role:          role,
		Type:          "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.RefreshExpiresIn)),
			Issuer:    "mintix",
			Subject:   userID,
		},
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// decodeWallet parses a base58 Solana address into its ed25519 public key.
func decodeWallet(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidWallet
	}
	return ed25519.PublicKey(raw), nil
}

func toUserResponse(user *users.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		WalletAddress: user.WalletAddress,
		Role:          string(user.Role),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}
