package application

import (
	"context"
	"errors"
	"strings"
	"sync"

	"marketsync-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nativeBalancePlaces = 4

// PlaceholderNativeBalance is reported when the wallet provider cannot be queried
// and no earlier reading exists for the address.
var PlaceholderNativeBalance = decimal.RequireFromString("2.5479")

// DefaultSupplementaryBalances are static holdings for non-native assets until
// token balances come from an indexer.
func DefaultSupplementaryBalances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ETH":  decimal.RequireFromString("2.5479"),
		"BTC":  decimal.RequireFromString("0.0342"),
		"USDC": decimal.RequireFromString("1250.75"),
		"USDT": decimal.RequireFromString("850.20"),
		"UNI":  decimal.RequireFromString("45.8"),
		"AAVE": decimal.RequireFromString("8.2"),
	}
}

var errNoWalletProvider = errors.New("no wallet provider configured")

type BalanceProvider struct {
	wallet        WalletProvider
	native        domain.Asset
	supplementary map[string]decimal.Decimal
	deps

	mu       sync.RWMutex
	lastGood map[string]decimal.Decimal
}

func NewBalanceProvider(wallet WalletProvider, assets *domain.AssetRegistry, supplementary map[string]decimal.Decimal, opts ...Option) *BalanceProvider {
	if assets == nil {
		assets = domain.DefaultAssets()
	}
	native, ok := assets.Native()
	if !ok {
		native = domain.Asset{Symbol: "ETH", Decimals: domain.NativeDecimals, Native: true}
	}
	if supplementary == nil {
		supplementary = DefaultSupplementaryBalances()
	}
	return &BalanceProvider{
		wallet:        wallet,
		native:        native,
		supplementary: supplementary,
		deps:          buildDeps(opts),
		lastGood:      map[string]decimal.Decimal{},
	}
}

// NativeBalance never fails: on provider errors it falls back to the last
// reading for the address, then to PlaceholderNativeBalance.
func (b *BalanceProvider) NativeBalance(ctx context.Context, address string) (decimal.Decimal, domain.BalanceSource) {
	key := strings.ToLower(address)
	v, err := b.query(ctx, address)
	if err == nil {
		b.mu.Lock()
		b.lastGood[key] = v
		b.mu.Unlock()
		b.metrics.BalanceServed(domain.BalanceFromChain)
		return v, domain.BalanceFromChain
	}

	b.log.Warn("balance.query_failed", zap.String("address", address), zap.Error(err))
	b.mu.RLock()
	prev, ok := b.lastGood[key]
	b.mu.RUnlock()
	if ok {
		b.metrics.BalanceServed(domain.BalanceFromCache)
		return prev, domain.BalanceFromCache
	}
	b.metrics.BalanceServed(domain.BalanceFromPlaceholder)
	return PlaceholderNativeBalance, domain.BalanceFromPlaceholder
}

func (b *BalanceProvider) query(ctx context.Context, address string) (decimal.Decimal, error) {
	if b.wallet == nil {
		return decimal.Zero, errNoWalletProvider
	}
	wei, err := b.wallet.Balance(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.FromBaseUnits(wei, b.native.Decimals).Round(nativeBalancePlaces), nil
}

// AllBalances overlays the live native balance on the static supplementary map.
func (b *BalanceProvider) AllBalances(ctx context.Context, address string) domain.BalanceSnapshot {
	out := make(map[string]decimal.Decimal, len(b.supplementary)+1)
	for sym, v := range b.supplementary {
		out[sym] = v
	}
	native, src := b.NativeBalance(ctx, address)
	out[b.native.Symbol] = native
	return domain.BalanceSnapshot{
		Address:      address,
		Balances:     out,
		NativeSource: src,
		TakenAt:      b.clock.Now(),
	}
}

func (b *BalanceProvider) NativeSymbol() string { return b.native.Symbol }
