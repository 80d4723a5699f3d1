package worker

import (
	"context"
	"time"

	"marketsync-service/internal/application"

	"go.uber.org/zap"
)

var _ Worker = (*WalletWatcher)(nil)

// WalletWatcher follows account switches on the wallet provider and
// refreshes the native balance of each newly selected account.
type WalletWatcher struct {
	Session  *application.WalletSession
	Balances *application.BalanceProvider
	Every    time.Duration
	Log      *zap.Logger

	// OnChange, when set, is called after each processed change.
	OnChange func(application.AccountChange)
}

func (w *WalletWatcher) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	changes := w.Session.Watch(ctx, w.Every)
	log.Info("wallet_watcher.started", zap.Duration("every", w.Every))
	for ch := range changes {
		if ch.Current == "" {
			log.Info("wallet_watcher.disconnected", zap.String("previous", ch.Previous))
		} else if w.Balances != nil {
			v, src := w.Balances.NativeBalance(ctx, ch.Current)
			log.Info("wallet_watcher.switched",
				zap.String("address", ch.Current),
				zap.String("native_balance", v.String()),
				zap.String("source", string(src)),
			)
		}
		if w.OnChange != nil {
			w.OnChange(ch)
		}
	}
	log.Info("wallet_watcher.stopped")
}
