package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"mintix/internal/shared/config"
	"mintix/internal/users"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"
)

type fakeAuthRepo struct {
	usersByWallet map[string]*users.User
	usersByEmail  map[string]*users.User
	usersByID     map[string]*users.User
	nonces        map[string]string

	createdUsers int
	touchedIDs   []string
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		usersByWallet: make(map[string]*users.User),
		usersByEmail:  make(map[string]*users.User),
		usersByID:     make(map[string]*users.User),
		nonces:        make(map[string]string),
	}
}

func (f *fakeAuthRepo) addUser(user *users.User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.usersByWallet[user.WalletAddress] = user
	f.usersByID[user.ID.String()] = user
	if user.Email != nil {
		f.usersByEmail[*user.Email] = user
	}
}

func (f *fakeAuthRepo) CreateUser(ctx context.Context, user *users.User) error {
	user.ID = uuid.New()
	f.addUser(user)
	f.createdUsers++
	return nil
}

func (f *fakeAuthRepo) GetUserByWallet(ctx context.Context, wallet string) (*users.User, error) {
	user, ok := f.usersByWallet[wallet]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) TouchLastLogin(ctx context.Context, userID string) error {
	f.touchedIDs = append(f.touchedIDs, userID)
	return nil
}

func (f *fakeAuthRepo) StoreNonce(ctx context.Context, wallet, nonce string, ttl time.Duration) error {
	f.nonces[wallet] = nonce
	return nil
}

func (f *fakeAuthRepo) GetNonce(ctx context.Context, wallet string) (string, error) {
	nonce, ok := f.nonces[wallet]
	if !ok {
		return "", ErrNonceNotFound
	}
	return nonce, nil
}

func (f *fakeAuthRepo) DeleteNonce(ctx context.Context, wallet string) error {
	delete(f.nonces, wallet)
	return nil
}

func testAuthConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			JWTExpiresIn:     15 * time.Minute,
			RefreshExpiresIn: 24 * time.Hour,
		},
		Redis: config.RedisConfig{
			NonceTTL: 5 * time.Minute,
		},
	}
}

// newWallet generates a keypair and returns its base58 address.
func newWallet(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub), priv
}

func signMessage(priv ed25519.PrivateKey, message string) string {
	return base58.Encode(ed25519.Sign(priv, []byte(message)))
}

func TestIssueNonce(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	wallet, _ := newWallet(t)

	resp, err := svc.IssueNonce(context.Background(), &NonceRequest{WalletAddress: wallet})
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	if resp.Nonce == "" || resp.WalletAddress != wallet {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if repo.nonces[wallet] != resp.Nonce {
		t.Fatal("nonce not stored")
	}

	if _, err := svc.IssueNonce(context.Background(), &NonceRequest{WalletAddress: "not-base58-0OIl"}); !errors.Is(err, ErrInvalidWallet) {
		t.Fatalf("expected ErrInvalidWallet, got %v", err)
	}
}

func TestWalletLoginRoundTrip(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	wallet, priv := newWallet(t)
	ctx := context.Background()

	nonceResp, err := svc.IssueNonce(ctx, &NonceRequest{WalletAddress: wallet})
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	message := "Sign in to Mintix: " + nonceResp.Nonce
	resp, err := svc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(priv, message),
	})
	if err != nil {
		t.Fatalf("wallet login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("tokens missing: %+v", resp)
	}
	if resp.User.WalletAddress != wallet || resp.User.Role != string(users.RoleUser) {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if repo.createdUsers != 1 {
		t.Fatalf("expected first login to create the user, created %d", repo.createdUsers)
	}

	claims, err := svc.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.WalletAddress != wallet || claims.Type != "access" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// Replaying the same signed message must fail: the nonce is single-use.
	_, err = svc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(priv, message),
	})
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected replay to fail with ErrNonceMismatch, got %v", err)
	}
}

func TestWalletLoginRejectsBadSignature(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	wallet, _ := newWallet(t)
	_, otherPriv := newWallet(t)
	ctx := context.Background()

	nonceResp, err := svc.IssueNonce(ctx, &NonceRequest{WalletAddress: wallet})
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	message := "Sign in to Mintix: " + nonceResp.Nonce

	// Signed by a different key.
	_, err = svc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(otherPriv, message),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// The failed attempt must not burn the nonce.
	if _, ok := repo.nonces[wallet]; !ok {
		t.Fatal("nonce deleted on failed login")
	}
}

func TestWalletLoginRejectsForeignNonce(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	wallet, priv := newWallet(t)
	ctx := context.Background()

	if _, err := svc.IssueNonce(ctx, &NonceRequest{WalletAddress: wallet}); err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	// Signed message carries a different nonce.
	message := "Sign in to Mintix: deadbeef"
	_, err := svc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(priv, message),
	})
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	ctx := context.Background()

	hashed, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	email := "admin@example.com"
	wallet, _ := newWallet(t)
	repo.addUser(&users.User{
		WalletAddress: wallet,
		Email:         &email,
		Password:      string(hashed),
		Role:          users.RoleAdmin,
	})

	resp, err := svc.AdminLogin(ctx, &AdminLoginRequest{Email: email, Password: "super-secret"})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if resp.User.Role != string(users.RoleAdmin) {
		t.Fatalf("unexpected role: %+v", resp.User)
	}

	if _, err := svc.AdminLogin(ctx, &AdminLoginRequest{Email: email, Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.AdminLogin(ctx, &AdminLoginRequest{Email: "nobody@example.com", Password: "x"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAdminLoginRejectsNonAdmin(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())

	hashed, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	email := "user@example.com"
	wallet, _ := newWallet(t)
	repo.addUser(&users.User{
		WalletAddress: wallet,
		Email:         &email,
		Password:      string(hashed),
		Role:          users.RoleUser,
	})

	_, err := svc.AdminLogin(context.Background(), &AdminLoginRequest{Email: email, Password: "pw"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewService(repo, testAuthConfig())
	wallet, priv := newWallet(t)
	ctx := context.Background()

	nonceResp, _ := svc.IssueNonce(ctx, &NonceRequest{WalletAddress: wallet})
	message := "login " + nonceResp.Nonce
	resp, err := svc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(priv, message),
	})
	if err != nil {
		t.Fatalf("wallet login: %v", err)
	}

	pair, err := svc.RefreshToken(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := svc.ValidateToken(pair.AccessToken)
	if err != nil || claims.WalletAddress != wallet {
		t.Fatalf("refreshed token invalid: %v %+v", err, claims)
	}

	// An access token must not pass as a refresh token.
	if _, err := svc.RefreshToken(ctx, resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := NewService(newFakeAuthRepo(), testAuthConfig())

	otherCfg := testAuthConfig()
	otherCfg.JWT.Secret = "different-secret"
	otherSvc := NewService(newFakeAuthRepo(), otherCfg)
	wallet, priv := newWallet(t)
	ctx := context.Background()

	nonceResp, _ := otherSvc.IssueNonce(ctx, &NonceRequest{WalletAddress: wallet})
	message := "login " + nonceResp.Nonce
	resp, err := otherSvc.WalletLogin(ctx, &WalletLoginRequest{
		WalletAddress: wallet,
		Message:       message,
		Signature:     signMessage(priv, message),
	})
	if err != nil {
		t.Fatalf("wallet login: %v", err)
	}

	if _, err := svc.ValidateToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}
	if _, err := svc.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token accepted: %v", err)
	}
}
