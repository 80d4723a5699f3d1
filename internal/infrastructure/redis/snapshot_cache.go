package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const LatestSnapshotKey = "marketsync:prices:latest"

// SnapshotCache shares the most recent price snapshot between the worker and API instances.
type SnapshotCache struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ application.SnapshotCache = (*SnapshotCache)(nil)

type cachedSnapshot struct {
	Prices    map[string]domain.AssetPrice `json:"prices"`
	FetchedAt time.Time                    `json:"fetched_at"`
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{Client: client, TTL: ttl}
}

func (c *SnapshotCache) StoreLatest(ctx context.Context, snap domain.PriceSnapshot, fetchedAt time.Time) error {
	b, err := json.Marshal(cachedSnapshot{Prices: snap.Prices(), FetchedAt: fetchedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.Client.Set(ctx, LatestSnapshotKey, b, c.TTL).Err()
}

// LoadLatest returns domain.ErrNotFound when nothing has been cached yet.
func (c *SnapshotCache) LoadLatest(ctx context.Context) (domain.PriceSnapshot, time.Time, error) {
	b, err := c.Client.Get(ctx, LatestSnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PriceSnapshot{}, time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PriceSnapshot{}, time.Time{}, err
	}
	var cs cachedSnapshot
	if err := json.Unmarshal(b, &cs); err != nil {
		return domain.PriceSnapshot{}, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return domain.NewPriceSnapshot(cs.Prices), cs.FetchedAt, nil
}
