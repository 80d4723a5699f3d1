package application

import (
	"context"
	"math/big"
	"time"

	"marketsync-service/internal/domain"
)

// PriceSource fetches spot prices for a batch of asset identifiers in one request.
type PriceSource interface {
	SimplePrices(ctx context.Context, ids []string) (map[string]domain.AssetPrice, error)
}

type PriceRoute struct {
	DestAmount string // base units of the destination asset
	GasCost    string // base units of the native asset
	GasCostUSD string
	Raw        []byte
}

type SwapQuoteRequest struct {
	Src     domain.Asset
	Dest    domain.Asset
	Amount  *big.Int
	Network int64
}

type BuildTxRequest struct {
	Route       []byte
	Src         domain.Asset
	Dest        domain.Asset
	SrcAmount   *big.Int
	DestAmount  *big.Int
	UserAddress string
	SlippageBps int64
	Network     int64
}

type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
}

// SwapAggregator is the external routing service. It never signs anything.
type SwapAggregator interface {
	Price(ctx context.Context, req SwapQuoteRequest) (PriceRoute, error)
	BuildTransaction(ctx context.Context, req BuildTxRequest) (domain.TransactionDescriptor, error)
	Tokens(ctx context.Context, network int64) ([]Token, error)
}

// WalletProvider is the capability surface of an EIP-1193 style provider.
type WalletProvider interface {
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
}

type PriceHistoryRepo interface {
	AppendSnapshot(ctx context.Context, snap domain.PriceSnapshot, fetchedAt time.Time) error
	History(ctx context.Context, assetID string, limit int) ([]domain.PriceRecord, error)
}

type SnapshotCache interface {
	StoreLatest(ctx context.Context, snap domain.PriceSnapshot, fetchedAt time.Time) error
	LoadLatest(ctx context.Context) (domain.PriceSnapshot, time.Time, error)
}

type OrderRepo interface {
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id string) (domain.Order, error)
}

type SwapRepo interface {
	Record(ctx context.Context, r domain.SwapRecord) error
}
