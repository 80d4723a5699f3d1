package pg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/logx"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

// PriceRepo stores every successful poll as one row per asset.
type PriceRepo struct {
	db  *DB
	uow *UnitOfWork
}

var _ application.PriceHistoryRepo = (*PriceRepo)(nil)

func NewPriceRepo(db *DB) *PriceRepo {
	return &PriceRepo{db: db, uow: &UnitOfWork{Pool: db.Pool}}
}

func (r *PriceRepo) AppendSnapshot(ctx context.Context, snap domain.PriceSnapshot, fetchedAt time.Time) error {
	if snap.Len() == 0 {
		return nil
	}
	const ins = `
        INSERT INTO price_snapshots(asset_id, usd, change_24h, fetched_at)
        VALUES ($1, $2::numeric, $3::numeric, $4)
        ON CONFLICT (asset_id, fetched_at) DO NOTHING`
	log := logx.WithFields(ctx).With(
		zap.String("repo", "price"),
		zap.String("operation", "AppendSnapshot"),
		zap.Int("assets", snap.Len()),
		zap.Time("fetched_at", fetchedAt),
	)
	prices := snap.Prices()
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err := r.uow.Do(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			p := prices[id]
			if _, err := r.db.conn(ctx).Exec(ctx, ins, id, p.USD.String(), p.Change24h.String(), fetchedAt.UTC()); err != nil {
				return fmt.Errorf("insert %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Info("sql.exec_success")
	return nil
}

func (r *PriceRepo) History(ctx context.Context, assetID string, limit int) ([]domain.PriceRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultHistoryLimit
	}
	const q = `
        SELECT id, asset_id, usd::text, change_24h::text, fetched_at
        FROM price_snapshots
        WHERE asset_id=$1
        ORDER BY fetched_at DESC
        LIMIT $2`
	rows, err := r.db.conn(ctx).Query(ctx, q, assetID, limit)
	if err != nil {
		logx.WithFields(ctx).Error("sql.query_failed", zap.String("repo", "price"), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceRecord
	for rows.Next() {
		var (
			rec         domain.PriceRecord
			usd, change string
		)
		if err := rows.Scan(&rec.ID, &rec.AssetID, &usd, &change, &rec.FetchedAt); err != nil {
			return nil, err
		}
		if rec.USD, err = decimal.NewFromString(usd); err != nil {
			return nil, fmt.Errorf("scan usd: %w", err)
		}
		if rec.Change24h, err = decimal.NewFromString(change); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		rec.FetchedAt = rec.FetchedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
