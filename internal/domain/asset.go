package domain

import (
	"sort"
	"strings"
)

// NativeTokenAddress is the aggregator placeholder for the chain's native asset.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

const NativeDecimals = 18

type Asset struct {
	Symbol   string
	CoinID   string
	Address  string
	Decimals int32
	Native   bool
}

type AssetRegistry struct {
	bySymbol map[string]Asset
}

func NewAssetRegistry(assets ...Asset) *AssetRegistry {
	r := &AssetRegistry{bySymbol: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		r.bySymbol[strings.ToUpper(a.Symbol)] = a
	}
	return r
}

// DefaultAssets mirrors the token table of the dashboard. BTC trades as WBTC on mainnet.
func DefaultAssets() *AssetRegistry {
	return NewAssetRegistry(
		Asset{Symbol: "ETH", CoinID: "ethereum", Address: NativeTokenAddress, Decimals: NativeDecimals, Native: true},
		Asset{Symbol: "BTC", CoinID: "bitcoin", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
		Asset{Symbol: "USDC", CoinID: "usd-coin", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		Asset{Symbol: "USDT", CoinID: "tether", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		Asset{Symbol: "UNI", CoinID: "uniswap", Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Decimals: 18},
		Asset{Symbol: "AAVE", CoinID: "aave", Address: "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9", Decimals: 18},
	)
}

func (r *AssetRegistry) Lookup(symbol string) (Asset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return a, ok
}

func (r *AssetRegistry) Native() (Asset, bool) {
	for _, a := range r.bySymbol {
		if a.Native {
			return a, true
		}
	}
	return Asset{}, false
}

// ByCoinID resolves a price-service identifier back to its asset.
func (r *AssetRegistry) ByCoinID(id string) (Asset, bool) {
	for _, a := range r.bySymbol {
		if a.CoinID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// CoinIDs returns the price-service identifiers of all assets, sorted.
func (r *AssetRegistry) CoinIDs() []string {
	out := make([]string, 0, len(r.bySymbol))
	for _, a := range r.bySymbol {
		if a.CoinID != "" {
			out = append(out, a.CoinID)
		}
	}
	sort.Strings(out)
	return out
}

func (r *AssetRegistry) Symbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
