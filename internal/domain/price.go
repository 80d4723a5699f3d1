package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetPrice struct {
	USD       decimal.Decimal `json:"usd"`
	Change24h decimal.Decimal `json:"usd_24h_change"`
}

// PriceSnapshot is replaced wholesale on every successful poll and never mutated.
type PriceSnapshot struct {
	prices map[string]AssetPrice
}

func NewPriceSnapshot(prices map[string]AssetPrice) PriceSnapshot {
	cp := make(map[string]AssetPrice, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return PriceSnapshot{prices: cp}
}

func (s PriceSnapshot) Get(assetID string) (AssetPrice, bool) {
	p, ok := s.prices[assetID]
	return p, ok
}

// IsZero reports the "never fetched" state.
func (s PriceSnapshot) IsZero() bool { return s.prices == nil }

func (s PriceSnapshot) Len() int { return len(s.prices) }

// Prices returns a copy of the underlying mapping.
func (s PriceSnapshot) Prices() map[string]AssetPrice {
	cp := make(map[string]AssetPrice, len(s.prices))
	for k, v := range s.prices {
		cp[k] = v
	}
	return cp
}

type PriceRecord struct {
	ID        int64
	AssetID   string
	USD       decimal.Decimal
	Change24h decimal.Decimal
	FetchedAt time.Time
}
