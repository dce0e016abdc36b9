package auth

import (
	"context"
	"errors"
	"time"

	"mintix/internal/shared/constants"
	"mintix/internal/users"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var ErrNonceNotFound = errors.New("nonce not found or expired")

type Repository interface {
	CreateUser(ctx context.Context, user *users.User) error
	GetUserByWallet(ctx context.Context, wallet string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	TouchLastLogin(ctx context.Context, userID string) error

	StoreNonce(ctx context.Context, wallet, nonce string, ttl time.Duration) error
	GetNonce(ctx context.Context, wallet string) (string, error)
	DeleteNonce(ctx context.Context, wallet string) error
}

type repository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewRepository(db *gorm.DB, rdb *redis.Client) Repository {
	return &repository{
		db:    db,
		redis: rdb,
	}
}

func (r *repository) CreateUser(ctx context.Context, user *users.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	return nil
}

func (r *repository) GetUserByWallet(ctx context.Context, wallet string) (*users.User, error) {
	var user users.User
	err := r.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var user users.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	var user users.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) TouchLastLogin(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Update("last_login_at", now).Error
}

func (r *repository) StoreNonce(ctx context.Context, wallet, nonce string, ttl time.Duration) error {
	key := constants.BuildAuthNonceKey(wallet)
	return r.redis.Set(ctx, key, nonce, ttl).Err()
}

func (r *repository) GetNonce(ctx context.Context, wallet string) (string, error) {
	key := constants.BuildAuthNonceKey(wallet)
	nonce, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNonceNotFound
		}
		return "", err
	}
	return nonce, nil
}

func (r *repository) DeleteNonce(ctx context.Context, wallet string) error {
	key := constants.BuildAuthNonceKey(wallet)
	return r.redis.Del(ctx, key).Err()
}
