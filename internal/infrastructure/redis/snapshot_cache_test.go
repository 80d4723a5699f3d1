package redisstore_test

import (
	"context"
	"testing"
	"time"

	"marketsync-service/internal/domain"
	redisstore "marketsync-service/internal/infrastructure/redis"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	cache := redisstore.NewSnapshotCache(client, time.Hour)
	ctx := context.Background()

	_, _, err := cache.LoadLatest(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := domain.NewPriceSnapshot(map[string]domain.AssetPrice{
		"ethereum": {USD: decimal.RequireFromString("2500.12"), Change24h: decimal.RequireFromString("-1.5")},
	})
	require.NoError(t, cache.StoreLatest(ctx, snap, at))

	got, gotAt, err := cache.LoadLatest(ctx)
	require.NoError(t, err)
	require.True(t, at.Equal(gotAt))
	p, ok := got.Get("ethereum")
	require.True(t, ok)
	require.Equal(t, "2500.12", p.USD.String())
	require.Equal(t, "-1.5", p.Change24h.String())
}

func TestSnapshotCache_CorruptValue(t *testing.T) {
	mr, client := newClient(t)
	cache := redisstore.NewSnapshotCache(client, 0)
	require.NoError(t, mr.Set(redisstore.LatestSnapshotKey, "{"))

	_, _, err := cache.LoadLatest(context.Background())
	require.Error(t, err)
}
