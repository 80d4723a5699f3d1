package pg

import (
	"context"
	"errors"
	"fmt"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderRepo struct{ db *DB }

var _ application.OrderRepo = (*OrderRepo)(nil)

func NewOrderRepo(db *DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	const ins = `
        INSERT INTO orders(id, side, wallet, symbol, amount, status, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`
	log := logx.WithFields(ctx).With(
		zap.String("repo", "order"),
		zap.String("operation", "Create"),
		zap.String("id", o.ID),
		zap.String("side", string(o.Side)),
		zap.String("symbol", o.Symbol),
	)
	log.Debug("sql.exec_start", zap.String("sql", ins))
	_, err := r.db.conn(ctx).Exec(ctx, ins, o.ID, string(o.Side), o.Wallet, o.Symbol, o.Amount.String(), string(o.Status), o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			log.Warn("sql.exec_conflict")
			return fmt.Errorf("%w: order %s", domain.ErrConflict, o.ID)
		}
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Info("sql.exec_success")
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (domain.Order, error) {
	const q = `
        SELECT id::text, side, wallet, symbol, amount::text, status, created_at
        FROM orders WHERE id::text=$1`
	log := logx.WithFields(ctx).With(
		zap.String("repo", "order"),
		zap.String("operation", "GetByID"),
		zap.String("id", id),
	)
	var (
		out          domain.Order
		side, status string
		amount       string
	)
	err := r.db.conn(ctx).QueryRow(ctx, q, id).Scan(&out.ID, &side, &out.Wallet, &out.Symbol, &amount, &status, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info("sql.query_no_rows")
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.Order{}, err
	}
	out.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan amount: %w", err)
	}
	out.Side = domain.OrderSide(side)
	out.Status = domain.OrderStatus(status)
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}
