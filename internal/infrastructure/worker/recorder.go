package worker

import (
	"context"
	"fmt"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"go.uber.org/zap"
)

// Worker is a long-running background task that returns when ctx is done.
type Worker interface {
	Start(ctx context.Context)
}

// SnapshotSource is the part of the price poller the recorder consumes.
type SnapshotSource interface {
	Subscribe() (<-chan domain.PriceSnapshot, func())
	State() application.PollerState
}

var _ Worker = (*SnapshotRecorder)(nil)

// SnapshotRecorder persists every snapshot published by the poller to
// history storage and to the shared latest-snapshot cache. Either sink may be nil.
type SnapshotRecorder struct {
	Source  SnapshotSource
	History application.PriceHistoryRepo
	Cache   application.SnapshotCache

	WriteTimeout time.Duration
	Log          *zap.Logger
}

func (w *SnapshotRecorder) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.WriteTimeout <= 0 {
		w.WriteTimeout = 5 * time.Second
	}
	updates, cancel := w.Source.Subscribe()
	defer cancel()

	log.Info("snapshot_recorder.started")
	// Catch up on a snapshot published before the subscription existed.
	if st := w.Source.State(); !st.Snapshot.IsZero() {
		w.recordOne(ctx, log, st.Snapshot, st.LastUpdatedAt)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("snapshot_recorder.stopped")
			return
		case snap, ok := <-updates:
			if !ok {
				log.Info("snapshot_recorder.source_closed")
				return
			}
			at := w.Source.State().LastUpdatedAt
			if at.IsZero() {
				at = time.Now().UTC()
			}
			w.recordOne(ctx, log, snap, at)
		}
	}
}

func (w *SnapshotRecorder) recordOne(ctx context.Context, log *zap.Logger, snap domain.PriceSnapshot, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("snapshot_recorder.panic", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	c, cancel := context.WithTimeout(ctx, w.WriteTimeout)
	defer cancel()

	if w.History != nil {
		if err := w.History.AppendSnapshot(c, snap, at); err != nil {
			log.Warn("snapshot_recorder.history_failed", zap.Error(err))
		}
	}
	if w.Cache != nil {
		if err := w.Cache.StoreLatest(c, snap, at); err != nil {
			log.Warn("snapshot_recorder.cache_failed", zap.Error(err))
		}
	}
	log.Info("snapshot_recorder.recorded", zap.Int("assets", snap.Len()), zap.Time("fetched_at", at))
}
