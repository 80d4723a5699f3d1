package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceSource string

const (
	BalanceFromChain       BalanceSource = "chain"
	BalanceFromCache       BalanceSource = "cached"
	BalanceFromPlaceholder BalanceSource = "placeholder"
)

type BalanceSnapshot struct {
	Address      string
	Balances     map[string]decimal.Decimal
	NativeSource BalanceSource
	TakenAt      time.Time
}

// Of returns the known quantity for symbol, zero when absent.
func (b BalanceSnapshot) Of(symbol string) decimal.Decimal {
	if v, ok := b.Balances[symbol]; ok {
		return v
	}
	return decimal.Zero
}
