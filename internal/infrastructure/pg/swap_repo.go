package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

// SwapRepo keeps an audit trail of built (unsigned) swap transactions.
type SwapRepo struct{ db *DB }

var _ application.SwapRepo = (*SwapRepo)(nil)

func NewSwapRepo(db *DB) *SwapRepo { return &SwapRepo{db: db} }

func (r *SwapRepo) Record(ctx context.Context, s domain.SwapRecord) error {
	tx, err := json.Marshal(s.Tx)
	if err != nil {
		return fmt.Errorf("encode tx: %w", err)
	}
	const ins = `
        INSERT INTO swap_transactions(id, wallet, src_asset, dest_asset, src_amount, dest_amount, slippage_bps, fallback, tx, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9::jsonb, $10)`
	log := logx.WithFields(ctx).With(
		zap.String("repo", "swap"),
		zap.String("operation", "Record"),
		zap.String("id", s.ID),
	)
	_, err = r.db.conn(ctx).Exec(ctx, ins, s.ID, s.Wallet, s.SourceAsset, s.DestAsset, s.SrcAmount, s.DestAmount, s.SlippageBps, s.Fallback, string(tx), s.CreatedAt)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Info("sql.exec_success")
	return nil
}

// Count returns the number of swaps recorded for wallet.
func (r *SwapRepo) Count(ctx context.Context, wallet string) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM swap_transactions WHERE wallet=$1`, wallet).Scan(&n)
	return n, err
}
