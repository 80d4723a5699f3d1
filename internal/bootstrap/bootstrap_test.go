package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROVIDER", "fake")
	t.Setenv("STORAGE", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CHAIN_RPC_URL", "")
	t.Setenv("PRICE_FEED_ADDR", "")
	t.Setenv("ASSETS_FILE", "")
}

func TestBuildWorker_FakeProfile(t *testing.T) {
	fakeEnv(t)
	t.Setenv("GRPC_ADDR", "")

	w, cleanup, err := BuildWorker(context.Background())
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, w.Poller)
	require.NotNil(t, w.Recorder)
	require.Nil(t, w.Feed)

	require.NoError(t, w.Poller.RefetchNow(context.Background()))
	_, ok := w.Poller.State().Snapshot.Get("ethereum")
	require.True(t, ok)
}

func TestBuildWorker_WithPriceFeed(t *testing.T) {
	fakeEnv(t)
	t.Setenv("GRPC_ADDR", "127.0.0.1:0")

	w, cleanup, err := BuildWorker(context.Background())
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, w.Feed)
	require.Equal(t, "127.0.0.1:0", w.GRPCAddr)
}

func TestBuildAPI_FakeProfile(t *testing.T) {
	fakeEnv(t)
	t.Setenv("WALLET_WATCH_MS", "1000")

	api, cleanup, err := BuildAPI(context.Background())
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, api.Handler)
	require.NotNil(t, api.Session)
	require.Len(t, api.Workers, 1, "wallet watcher only, no cache recorder without redis")
}

func TestBuildAPI_BadAssetsFile(t *testing.T) {
	fakeEnv(t)
	t.Setenv("ASSETS_FILE", "/nonexistent/assets.yaml")

	_, _, err := BuildAPI(context.Background())
	require.Error(t, err)
}
