package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "placed"
)

type Order struct {
	ID        string
	Side      OrderSide
	Wallet    string
	Symbol    string
	Amount    decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
}
