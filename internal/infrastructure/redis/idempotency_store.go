package redisstore

import (
	"context"
	"time"

	"marketsync-service/internal/application"

	"github.com/redis/go-redis/v9"
)

const idemPrefix = "marketsync:idem:"

type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ application.IdempotencyStore = (*Store)(nil)

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func (s *Store) TryReserve(ctx context.Context, key string) (bool, error) {
	return s.Client.SetNX(ctx, idemPrefix+key, "1", s.TTL).Result()
}

// Release frees a reservation whose request failed so the client may retry it.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, idemPrefix+key).Err()
}
