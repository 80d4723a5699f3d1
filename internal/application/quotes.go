package application

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marketsync-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultNetwork         int64 = 1
	DefaultSlippagePercent       = 1
	quoteDisplayPlaces           = 6

	// DefaultQuoteTTL matches the default price poll interval.
	DefaultQuoteTTL = 30 * time.Second
)

// Placeholder figures shown when the aggregator cannot be reached.
var (
	FallbackRate       = decimal.RequireFromString("0.995")
	FallbackGasCost    = "0.003"
	FallbackGasCostUSD = "7.50"
)

// QuoteCoordinator obtains swap quotes and builds unsigned swap transactions.
// Overlapping GetQuote calls are ordered by issue sequence: a response never
// replaces the result of a later-issued call.
type QuoteCoordinator struct {
	agg     SwapAggregator
	assets  *domain.AssetRegistry
	network int64
	deps

	seq atomic.Uint64

	mu       sync.RWMutex
	applied  uint64
	current  *domain.QuoteResult
	lastErr  error
	inflight int
}

func NewQuoteCoordinator(agg SwapAggregator, assets *domain.AssetRegistry, network int64, opts ...Option) *QuoteCoordinator {
	if network <= 0 {
		network = DefaultNetwork
	}
	if assets == nil {
		assets = domain.DefaultAssets()
	}
	return &QuoteCoordinator{agg: agg, assets: assets, network: network, deps: buildDeps(opts)}
}

func (c *QuoteCoordinator) GetQuote(ctx context.Context, src, dest, amount string) (domain.QuoteResult, error) {
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dest) == "" || strings.TrimSpace(amount) == "" {
		return domain.QuoteResult{}, domain.ErrMissingInput
	}
	srcAsset, ok := c.assets.Lookup(src)
	if !ok {
		return domain.QuoteResult{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedAsset, src)
	}
	destAsset, ok := c.assets.Lookup(dest)
	if !ok {
		return domain.QuoteResult{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedAsset, dest)
	}
	amt, err := domain.ParseAmount(strings.TrimSpace(amount))
	if err != nil {
		return domain.QuoteResult{}, err
	}
	base, err := domain.ToBaseUnits(amt, srcAsset.Decimals)
	if err != nil {
		return domain.QuoteResult{}, err
	}

	seq := c.seq.Add(1)
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	log := c.log.With(
		zap.String("src", srcAsset.Symbol),
		zap.String("dest", destAsset.Symbol),
		zap.String("amount", amt.String()),
		zap.Uint64("seq", seq),
	)

	var (
		res    domain.QuoteResult
		stored error
	)
	route, err := c.agg.Price(ctx, SwapQuoteRequest{Src: srcAsset, Dest: destAsset, Amount: base, Network: c.network})
	if err == nil {
		res, err = c.normalize(srcAsset, destAsset, amt, route)
	}
	if err != nil {
		log.Warn("quote.fallback", zap.Error(err))
		res = c.fallback(srcAsset, destAsset, amt, err)
		stored = fmt.Errorf("failed to get swap quote: %w", err)
	} else {
		log.Info("quote.success", zap.String("dest_amount", res.Quote.DestAmount))
	}
	c.metrics.QuoteServed(res.Kind)
	c.apply(seq, res, stored)
	return res, nil
}

func (c *QuoteCoordinator) normalize(src, dest domain.Asset, amt decimal.Decimal, route PriceRoute) (domain.QuoteResult, error) {
	destAmt, err := domain.ParseBaseUnits(route.DestAmount, dest.Decimals)
	if err != nil {
		return domain.QuoteResult{}, fmt.Errorf("%w: dest amount: %w", ErrUpstream, err)
	}
	gas := decimal.Zero
	if route.GasCost != "" {
		gas, err = domain.ParseBaseUnits(route.GasCost, domain.NativeDecimals)
		if err != nil {
			return domain.QuoteResult{}, fmt.Errorf("%w: gas cost: %w", ErrUpstream, err)
		}
	}
	return domain.QuoteResult{
		Kind: domain.QuoteAuthoritative,
		Quote: domain.Quote{
			SourceAsset:    src.Symbol,
			DestAsset:      dest.Symbol,
			SourceAmount:   amt.String(),
			DestAmount:     destAmt.StringFixed(quoteDisplayPlaces),
			DestAmountBase: route.DestAmount,
			GasCost:        gas.StringFixed(quoteDisplayPlaces),
			GasCostUSD:     route.GasCostUSD,
			Route:          route.Raw,
			ObtainedAt:     c.clock.Now(),
		},
	}, nil
}

func (c *QuoteCoordinator) fallback(src, dest domain.Asset, amt decimal.Decimal, cause error) domain.QuoteResult {
	return domain.QuoteResult{
		Kind:   domain.QuoteFallback,
		Reason: cause.Error(),
		Quote: domain.Quote{
			SourceAsset:  src.Symbol,
			DestAsset:    dest.Symbol,
			SourceAmount: amt.String(),
			DestAmount:   amt.Mul(FallbackRate).StringFixed(quoteDisplayPlaces),
			GasCost:      FallbackGasCost,
			GasCostUSD:   FallbackGasCostUSD,
			ObtainedAt:   c.clock.Now(),
		},
	}
}

func (c *QuoteCoordinator) apply(seq uint64, res domain.QuoteResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if seq <= c.applied {
		c.log.Debug("quote.stale_discarded", zap.Uint64("seq", seq), zap.Uint64("applied", c.applied))
		return
	}
	c.applied = seq
	c.current = &res
	c.lastErr = err
}

func (c *QuoteCoordinator) Current() (domain.QuoteResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return domain.QuoteResult{}, false
	}
	return *c.current, true
}

func (c *QuoteCoordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *QuoteCoordinator) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// BuildSwap asks the aggregator for a transaction payload for q. Signing and
// broadcasting belong to the wallet.
func (c *QuoteCoordinator) BuildSwap(ctx context.Context, q domain.Quote, wallet string, slippagePercent decimal.Decimal) (domain.TransactionDescriptor, error) {
	if !q.HasRoute() {
		return domain.TransactionDescriptor{}, domain.ErrNoQuote
	}
	if !common.IsHexAddress(wallet) {
		return domain.TransactionDescriptor{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, wallet)
	}
	if !slippagePercent.IsPositive() {
		slippagePercent = decimal.NewFromInt(DefaultSlippagePercent)
	}
	src, ok := c.assets.Lookup(q.SourceAsset)
	if !ok {
		return domain.TransactionDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedAsset, q.SourceAsset)
	}
	dest, ok := c.assets.Lookup(q.DestAsset)
	if !ok {
		return domain.TransactionDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedAsset, q.DestAsset)
	}
	srcAmt, err := domain.ParseAmount(q.SourceAmount)
	if err != nil {
		return domain.TransactionDescriptor{}, err
	}
	srcBase, err := domain.ToBaseUnits(srcAmt, src.Decimals)
	if err != nil {
		return domain.TransactionDescriptor{}, err
	}
	destBase, err := c.destBase(q, dest)
	if err != nil {
		return domain.TransactionDescriptor{}, err
	}
	bps := slippagePercent.Mul(decimal.NewFromInt(100)).IntPart()

	tx, err := c.agg.BuildTransaction(ctx, BuildTxRequest{
		Route:       q.Route,
		Src:         src,
		Dest:        dest,
		SrcAmount:   srcBase,
		DestAmount:  destBase,
		UserAddress: common.HexToAddress(wallet).Hex(),
		SlippageBps: bps,
		Network:     c.network,
	})
	if err != nil {
		c.log.Warn("swap.build_failed", zap.String("wallet", wallet), zap.Error(err))
		return domain.TransactionDescriptor{}, fmt.Errorf("%w: failed to execute swap: %w", ErrUpstream, err)
	}
	c.log.Info("swap.built", zap.String("wallet", wallet), zap.String("to", tx.To), zap.Int64("slippage_bps", bps))
	return tx, nil
}

func (c *QuoteCoordinator) destBase(q domain.Quote, dest domain.Asset) (*big.Int, error) {
	if q.DestAmountBase != "" {
		v, ok := new(big.Int).SetString(q.DestAmountBase, 10)
		if ok {
			return v, nil
		}
	}
	d, err := decimal.NewFromString(q.DestAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: dest amount %q", domain.ErrInvalidAmount, q.DestAmount)
	}
	return domain.ToBaseUnits(d, dest.Decimals)
}

func (c *QuoteCoordinator) Tokens(ctx context.Context) ([]Token, error) {
	toks, err := c.agg.Tokens(ctx, c.network)
	if err != nil {
		return nil, fmt.Errorf("%w: tokens: %w", ErrUpstream, err)
	}
	return toks, nil
}

func (c *QuoteCoordinator) Assets() *domain.AssetRegistry { return c.assets }
