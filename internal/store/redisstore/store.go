package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	captchaPrefix = "captcha:"
	onlineSetKey  = "online_users"

	captchaTTL = 10 * time.Minute
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) SetCaptcha(ctx context.Context, email, code string) error {
	return s.rdb.Set(ctx, captchaPrefix+email, code, captchaTTL).Err()
}

// GetCaptcha returns redis.Nil when no code is stored for the email.
func (s *Store) GetCaptcha(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, captchaPrefix+email).Result()
}

func (s *Store) DeleteCaptcha(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, captchaPrefix+email).Err()
}

// Presence is maintained by the websocket hub on connect/disconnect and is
// advisory only: a stale entry means a stale online dot, nothing worse.

func (s *Store) SetOnline(ctx context.Context, userID uint64) error {
	return s.rdb.SAdd(ctx, onlineSetKey, userID).Err()
}

func (s *Store) SetOffline(ctx context.Context, userID uint64) error {
	return s.rdb.SRem(ctx, onlineSetKey, userID).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	return s.rdb.SIsMember(ctx, onlineSetKey, userID).Result()
}
