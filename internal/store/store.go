package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/config"
)

// Store wraps the shared redis client and key prefix for the redis-backed
// voucher, session and coin-slot stores.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(cfg *config.Config, password string) *Store {
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       cfg.Redis.DB,
	})
	return &Store{
		rdb:    rdb,
		prefix: cfg.Redis.Prefix,
	}
}

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// wrapErr folds backend failures into ErrUnavailable so callers can
// treat "redis down" uniformly. redis.Nil is not a backend failure and
// is never passed here.
func wrapErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
