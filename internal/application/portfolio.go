package application

import (
	"context"
	"sort"
	"time"

	"marketsync-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PortfolioLine struct {
	Symbol    string
	Quantity  decimal.Decimal
	PriceUSD  decimal.Decimal
	ValueUSD  decimal.Decimal
	Change24h decimal.Decimal
	Priced    bool
}

type Portfolio struct {
	Address      string
	Lines        []PortfolioLine
	TotalUSD     decimal.Decimal
	NativeSource domain.BalanceSource
	PricesAt     time.Time
}

type PortfolioService struct {
	poller   *PricePoller
	balances *BalanceProvider
	assets   *domain.AssetRegistry
	deps
}

func NewPortfolioService(poller *PricePoller, balances *BalanceProvider, assets *domain.AssetRegistry, opts ...Option) *PortfolioService {
	if assets == nil {
		assets = domain.DefaultAssets()
	}
	return &PortfolioService{poller: poller, balances: balances, assets: assets, deps: buildDeps(opts)}
}

// Valuation reads balances and, when the price snapshot is missing or older
// than two poll intervals, refreshes prices concurrently.
func (s *PortfolioService) Valuation(ctx context.Context, address string) (Portfolio, error) {
	var snap domain.BalanceSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap = s.balances.AllBalances(gctx, address)
		return nil
	})
	g.Go(func() error {
		st := s.poller.State()
		if !st.Snapshot.IsZero() && s.clock.Now().Sub(st.LastUpdatedAt) < 2*s.poller.Interval() {
			return nil
		}
		if err := s.poller.RefetchNow(gctx); err != nil {
			s.log.Warn("portfolio.price_refresh_failed", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Portfolio{}, err
	}

	st := s.poller.State()
	out := Portfolio{Address: address, TotalUSD: decimal.Zero, NativeSource: snap.NativeSource, PricesAt: st.LastUpdatedAt}
	for sym, qty := range snap.Balances {
		line := PortfolioLine{Symbol: sym, Quantity: qty, PriceUSD: decimal.Zero, ValueUSD: decimal.Zero, Change24h: decimal.Zero}
		if a, ok := s.assets.Lookup(sym); ok {
			if p, ok := st.Snapshot.Get(a.CoinID); ok {
				line.PriceUSD = p.USD
				line.Change24h = p.Change24h
				line.ValueUSD = qty.Mul(p.USD)
				line.Priced = true
				out.TotalUSD = out.TotalUSD.Add(line.ValueUSD)
			}
		}
		out.Lines = append(out.Lines, line)
	}
	sort.Slice(out.Lines, func(i, j int) bool { return out.Lines[i].Symbol < out.Lines[j].Symbol })
	return out, nil
}
