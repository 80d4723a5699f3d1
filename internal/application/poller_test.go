package application

import (
	"context"
	"testing"
	"time"

	"marketsync-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ethPrice(usd int64, change string) map[string]domain.AssetPrice {
	return map[string]domain.AssetPrice{
		"ethereum": {USD: decimal.NewFromInt(usd), Change24h: decimal.RequireFromString(change)},
	}
}

func TestPricePoller_FetchesOnStart(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "1.25")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	require.Eventually(t, func() bool { return p.State().Snapshot.Len() == 1 }, time.Second, 5*time.Millisecond)
	st := p.State()
	got, ok := st.Snapshot.Get("ethereum")
	require.True(t, ok)
	require.True(t, got.USD.Equal(decimal.NewFromInt(2500)))
	require.NoError(t, st.LastError)
	require.False(t, st.IsLoading)
	require.False(t, st.LastUpdatedAt.IsZero())
}

func TestPricePoller_PollsEveryInterval(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, []string{"ethereum"}, 10*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	require.Eventually(t, func() bool { return src.callCount() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPricePoller_KeepsSnapshotOnFailure(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakePriceSource{prices: ethPrice(2500, "1.25")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour, WithClock(fakeClock{t: now}))

	require.NoError(t, p.RefetchNow(context.Background()))
	before := p.State()
	require.Equal(t, 1, before.Snapshot.Len())

	src.set(nil, errBoom)
	err := p.RefetchNow(context.Background())
	require.ErrorIs(t, err, errBoom)

	after := p.State()
	require.Equal(t, before.Snapshot, after.Snapshot)
	require.Equal(t, now, after.LastUpdatedAt)
	require.ErrorIs(t, after.LastError, errBoom)
	require.False(t, after.IsLoading)

	src.set(ethPrice(2600, "4"), nil)
	require.NoError(t, p.RefetchNow(context.Background()))
	require.NoError(t, p.State().LastError)
}

func TestPricePoller_FailureBeforeFirstFetchLeavesNeverFetched(t *testing.T) {
	src := &fakePriceSource{err: errBoom}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)

	require.Error(t, p.RefetchNow(context.Background()))
	st := p.State()
	require.True(t, st.Snapshot.IsZero())
	require.True(t, st.LastUpdatedAt.IsZero())
	require.Error(t, st.LastError)
}

func TestPricePoller_RefetchJoinsInFlightFetch(t *testing.T) {
	src := &fakePriceSource{
		prices:  ethPrice(2500, "0"),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)

	first := make(chan error, 1)
	second := make(chan error, 1)
	go func() { first <- p.RefetchNow(context.Background()) }()
	<-src.started
	require.True(t, p.State().IsLoading)

	go func() { second <- p.RefetchNow(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(src.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.Equal(t, 1, src.callCount())
	require.False(t, p.State().IsLoading)
}

func TestPricePoller_StopDiscardsInFlightResult(t *testing.T) {
	src := &fakePriceSource{
		prices:    ethPrice(2500, "0"),
		gate:      make(chan struct{}),
		ignoreCtx: true,
		started:   make(chan struct{}, 1),
	}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)
	updates, _ := p.Subscribe()
	require.NoError(t, p.Start(context.Background()))
	<-src.started

	p.Stop()
	before := p.State()
	close(src.gate)
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, before, p.State())
	require.True(t, p.State().Snapshot.IsZero())
	_, open := <-updates
	require.False(t, open)
}

func TestPricePoller_Lifecycle(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)

	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), domain.ErrPollerRunning)
	p.Stop()
	p.Stop()
	require.ErrorIs(t, p.Start(context.Background()), domain.ErrPollerStopped)
	require.ErrorIs(t, p.RefetchNow(context.Background()), domain.ErrPollerStopped)
}

func TestPricePoller_RunStopsWhenContextEnds(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.ErrorIs(t, p.Start(context.Background()), domain.ErrPollerStopped)
}

func TestPricePoller_RunReturnsOnStop(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, 5*time.Millisecond)

	p.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestPricePoller_SubscribeReceivesNewSnapshots(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, []string{"ethereum"}, time.Hour)
	updates, cancel := p.Subscribe()

	require.NoError(t, p.RefetchNow(context.Background()))
	src.set(ethPrice(2600, "0"), nil)
	require.NoError(t, p.RefetchNow(context.Background()))

	// buffer holds only the newest snapshot
	snap := <-updates
	got, _ := snap.Get("ethereum")
	require.True(t, got.USD.Equal(decimal.NewFromInt(2600)))

	cancel()
	_, open := <-updates
	require.False(t, open)
}

func TestPricePoller_NoAssetsNoRequests(t *testing.T) {
	src := &fakePriceSource{prices: ethPrice(2500, "0")}
	p := NewPricePoller(src, nil, time.Hour)
	require.NoError(t, p.RefetchNow(context.Background()))
	require.Zero(t, src.callCount())
	require.True(t, p.State().Snapshot.IsZero())
}

func TestPricePoller_SeedIsReplacedByFetch(t *testing.T) {
	at := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	src := &fakePriceSource{prices: ethPrice(2600, "0")}
	p := NewPricePoller(src, []string{"ethereum", "ethereum", ""}, 0)
	require.Equal(t, DefaultPollInterval, p.Interval())

	p.Seed(domain.NewPriceSnapshot(ethPrice(2000, "0")), at)
	st := p.State()
	require.Equal(t, at, st.LastUpdatedAt)
	seeded, _ := st.Snapshot.Get("ethereum")
	require.True(t, seeded.USD.Equal(decimal.NewFromInt(2000)))

	require.NoError(t, p.RefetchNow(context.Background()))
	fresh, _ := p.State().Snapshot.Get("ethereum")
	require.True(t, fresh.USD.Equal(decimal.NewFromInt(2600)))
}
