package httpserver

import (
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"github.com/shopspring/decimal"
)

type pricesResponse struct {
	Prices        map[string]domain.AssetPrice `json:"prices"`
	LastUpdatedAt *time.Time                   `json:"last_updated_at,omitempty"`
	IsLoading     bool                         `json:"is_loading"`
	Error         string                       `json:"error,omitempty"`
}

func toPrices(st application.PollerState) pricesResponse {
	out := pricesResponse{Prices: st.Snapshot.Prices(), IsLoading: st.IsLoading}
	if !st.LastUpdatedAt.IsZero() {
		at := st.LastUpdatedAt
		out.LastUpdatedAt = &at
	}
	if st.LastError != nil {
		out.Error = st.LastError.Error()
	}
	return out
}

type priceRecordResponse struct {
	AssetID   string          `json:"asset_id"`
	USD       decimal.Decimal `json:"usd"`
	Change24h decimal.Decimal `json:"usd_24h_change"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type quoteResponse struct {
	domain.Quote
	Kind     domain.QuoteKind `json:"kind"`
	Fallback bool             `json:"fallback"`
	Reason   string           `json:"reason,omitempty"`
}

func toQuote(r domain.QuoteResult) quoteResponse {
	return quoteResponse{Quote: r.Quote, Kind: r.Kind, Fallback: r.IsFallback(), Reason: r.Reason}
}

type swapRequest struct {
	Wallet          string          `json:"wallet"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          string          `json:"amount"`
	SlippagePercent decimal.Decimal `json:"slippage_percent"`
}

type swapResponse struct {
	ID    string                       `json:"id"`
	Quote quoteResponse                `json:"quote"`
	Tx    domain.TransactionDescriptor `json:"transaction"`
}

type balancesResponse struct {
	Address      string                     `json:"address"`
	Balances     map[string]decimal.Decimal `json:"balances"`
	NativeSource domain.BalanceSource       `json:"native_source"`
	TakenAt      time.Time                  `json:"taken_at"`
}

type orderRequest struct {
	Side   string `json:"side"`
	Wallet string `json:"wallet"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

type orderResponse struct {
	ID        string          `json:"id"`
	Side      string          `json:"side"`
	Wallet    string          `json:"wallet"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toOrder(o domain.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		Side:      string(o.Side),
		Wallet:    o.Wallet,
		Symbol:    o.Symbol,
		Amount:    o.Amount,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

type walletResponse struct {
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected"`
}

type portfolioLine struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	ValueUSD  decimal.Decimal `json:"value_usd"`
	Change24h decimal.Decimal `json:"usd_24h_change"`
	Priced    bool            `json:"priced"`
}

type portfolioResponse struct {
	Address      string               `json:"address"`
	Lines        []portfolioLine      `json:"lines"`
	TotalUSD     decimal.Decimal      `json:"total_usd"`
	NativeSource domain.BalanceSource `json:"native_source"`
	PricesAt     *time.Time           `json:"prices_at,omitempty"`
}

func toPortfolio(p application.Portfolio) portfolioResponse {
	out := portfolioResponse{
		Address:      p.Address,
		Lines:        make([]portfolioLine, 0, len(p.Lines)),
		TotalUSD:     p.TotalUSD,
		NativeSource: p.NativeSource,
	}
	for _, l := range p.Lines {
		out.Lines = append(out.Lines, portfolioLine(l))
	}
	if !p.PricesAt.IsZero() {
		at := p.PricesAt
		out.PricesAt = &at
	}
	return out
}
