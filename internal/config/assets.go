package config

import (
	"fmt"
	"os"
	"strings"

	"marketsync-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type assetEntry struct {
	Symbol   string `yaml:"symbol"`
	CoinID   string `yaml:"coin_id"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
	Native   bool   `yaml:"native"`
}

type assetsFile struct {
	Assets []assetEntry `yaml:"assets"`
}

// LoadAssets reads a token table from YAML. An empty path returns the
// built-in registry.
//
//	assets:
//	  - symbol: ETH
//	    coin_id: ethereum
//	    decimals: 18
//	    native: true
//	  - symbol: USDC
//	    coin_id: usd-coin
//	    address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
//	    decimals: 6
func LoadAssets(path string) (*domain.AssetRegistry, error) {
	if path == "" {
		return domain.DefaultAssets(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets file: %w", err)
	}
	var f assetsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse assets file: %w", err)
	}
	if len(f.Assets) == 0 {
		return nil, fmt.Errorf("assets file %s: no assets", path)
	}

	seen := map[string]bool{}
	natives := 0
	assets := make([]domain.Asset, 0, len(f.Assets))
	for i, e := range f.Assets {
		sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
		switch {
		case sym == "" || e.CoinID == "":
			return nil, fmt.Errorf("asset #%d: symbol and coin_id are required", i)
		case seen[sym]:
			return nil, fmt.Errorf("asset %s: duplicate symbol", sym)
		case e.Decimals < 0 || e.Decimals > 36:
			return nil, fmt.Errorf("asset %s: decimals out of range", sym)
		}
		seen[sym] = true
		addr := e.Address
		if e.Native {
			natives++
			if addr == "" {
				addr = domain.NativeTokenAddress
			}
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("asset %s: invalid address %q", sym, e.Address)
		}
		assets = append(assets, domain.Asset{
			Symbol:   sym,
			CoinID:   e.CoinID,
			Address:  addr,
			Decimals: e.Decimals,
			Native:   e.Native,
		})
	}
	if natives > 1 {
		return nil, fmt.Errorf("assets file %s: more than one native asset", path)
	}
	return domain.NewAssetRegistry(assets...), nil
}
