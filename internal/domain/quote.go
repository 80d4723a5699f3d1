package domain

import (
	"encoding/json"
	"time"
)

type Quote struct {
	SourceAsset    string          `json:"src_token"`
	DestAsset      string          `json:"dest_token"`
	SourceAmount   string          `json:"src_amount"`
	DestAmount     string          `json:"dest_amount"`
	DestAmountBase string          `json:"dest_amount_base,omitempty"`
	GasCost        string          `json:"gas_cost"`
	GasCostUSD     string          `json:"gas_cost_usd"`
	Route          json.RawMessage `json:"price_route,omitempty"`
	ObtainedAt     time.Time       `json:"obtained_at"`
}

func (q Quote) HasRoute() bool {
	return len(q.Route) > 0 && string(q.Route) != "null"
}

type QuoteKind string

const (
	QuoteAuthoritative QuoteKind = "authoritative"
	QuoteFallback      QuoteKind = "fallback"
)

// QuoteResult tags a quote with its provenance so placeholders are never
// mistaken for aggregator prices.
type QuoteResult struct {
	Quote  Quote
	Kind   QuoteKind
	Reason string
}

func (r QuoteResult) IsFallback() bool { return r.Kind == QuoteFallback }
