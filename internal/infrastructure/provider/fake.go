package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	_ application.PriceSource    = (*Fake)(nil)
	_ application.SwapAggregator = (*Fake)(nil)
	_ application.WalletProvider = (*Fake)(nil)
)

// Fake serves every external port from static data for local runs.
type Fake struct {
	assets  *domain.AssetRegistry
	prices  map[string]domain.AssetPrice
	account string
	wei     *big.Int
}

func DefaultFakePrices() map[string]domain.AssetPrice {
	p := func(usd, change string) domain.AssetPrice {
		return domain.AssetPrice{USD: decimal.RequireFromString(usd), Change24h: decimal.RequireFromString(change)}
	}
	return map[string]domain.AssetPrice{
		"ethereum": p("2500", "1.8"),
		"bitcoin":  p("43000", "-0.6"),
		"usd-coin": p("1", "0"),
		"tether":   p("1", "0.01"),
		"uniswap":  p("6.4", "3.2"),
		"aave":     p("95", "-2.4"),
	}
}

func NewFake(assets *domain.AssetRegistry, account string) *Fake {
	if assets == nil {
		assets = domain.DefaultAssets()
	}
	wei, _ := new(big.Int).SetString("2547900000000000000", 10)
	return &Fake{assets: assets, prices: DefaultFakePrices(), account: account, wei: wei}
}

func (f *Fake) SimplePrices(_ context.Context, ids []string) (map[string]domain.AssetPrice, error) {
	out := make(map[string]domain.AssetPrice, len(ids))
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *Fake) Price(_ context.Context, r application.SwapQuoteRequest) (application.PriceRoute, error) {
	src, ok := f.prices[r.Src.CoinID]
	if !ok {
		return application.PriceRoute{}, fmt.Errorf("fake: no price for %s", r.Src.Symbol)
	}
	dest, ok := f.prices[r.Dest.CoinID]
	if !ok || dest.USD.IsZero() {
		return application.PriceRoute{}, fmt.Errorf("fake: no price for %s", r.Dest.Symbol)
	}
	human := domain.FromBaseUnits(r.Amount, r.Src.Decimals)
	destBase, err := domain.ToBaseUnits(human.Mul(src.USD).Div(dest.USD), r.Dest.Decimals)
	if err != nil {
		return application.PriceRoute{}, err
	}
	raw, _ := json.Marshal(map[string]string{
		"srcToken":   r.Src.Address,
		"destToken":  r.Dest.Address,
		"amount":     r.Amount.String(),
		"destAmount": destBase.String(),
	})
	return application.PriceRoute{
		DestAmount: destBase.String(),
		GasCost:    "3000000000000000",
		GasCostUSD: "7.50",
		Raw:        raw,
	}, nil
}

func (f *Fake) BuildTransaction(_ context.Context, r application.BuildTxRequest) (domain.TransactionDescriptor, error) {
	value := "0"
	if r.Src.Native && r.SrcAmount != nil {
		value = r.SrcAmount.String()
	}
	return domain.TransactionDescriptor{
		From:    r.UserAddress,
		To:      "0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57",
		Value:   value,
		Data:    "0x",
		Gas:     "210000",
		ChainID: r.Network,
	}, nil
}

func (f *Fake) Tokens(context.Context, int64) ([]application.Token, error) {
	var out []application.Token
	for _, sym := range f.assets.Symbols() {
		a, _ := f.assets.Lookup(sym)
		out = append(out, application.Token{Symbol: a.Symbol, Address: a.Address, Decimals: a.Decimals})
	}
	return out, nil
}

func (f *Fake) Accounts(context.Context) ([]string, error) {
	if f.account == "" {
		return nil, nil
	}
	return []string{f.account}, nil
}

func (f *Fake) RequestAccounts(ctx context.Context) ([]string, error) {
	return f.Accounts(ctx)
}

func (f *Fake) Balance(_ context.Context, address string) (*big.Int, error) {
	if !strings.HasPrefix(address, "0x") {
		return nil, fmt.Errorf("fake: %w", domain.ErrInvalidAddress)
	}
	return new(big.Int).Set(f.wei), nil
}
