package application

import (
	"context"
	"fmt"
	"strings"

	"marketsync-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SwapRequest struct {
	Wallet          string
	From            string
	To              string
	Amount          string
	SlippagePercent decimal.Decimal
}

type SwapResult struct {
	ID    string
	Quote domain.QuoteResult
	Tx    domain.TransactionDescriptor
}

type OrderRequest struct {
	Side   domain.OrderSide
	Wallet string
	Symbol string
	Amount string
}

// TradeService validates trade requests before anything reaches the aggregator.
type TradeService struct {
	quotes   *QuoteCoordinator
	balances *BalanceProvider
	session  *WalletSession
	orders   OrderRepo
	swaps    SwapRepo
	deps
}

func NewTradeService(quotes *QuoteCoordinator, balances *BalanceProvider, session *WalletSession, orders OrderRepo, swaps SwapRepo, opts ...Option) *TradeService {
	return &TradeService{
		quotes:   quotes,
		balances: balances,
		session:  session,
		orders:   orders,
		swaps:    swaps,
		deps:     buildDeps(opts),
	}
}

func (s *TradeService) PrepareSwap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	if strings.TrimSpace(req.Amount) == "" || strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		return SwapResult{}, domain.ErrMissingInput
	}
	wallet, err := s.resolveWallet(req.Wallet)
	if err != nil {
		return SwapResult{}, err
	}
	amt, err := domain.ParseAmount(strings.TrimSpace(req.Amount))
	if err != nil {
		return SwapResult{}, err
	}
	if err := s.ensureBalance(ctx, wallet, req.From, amt); err != nil {
		return SwapResult{}, err
	}

	res, ok := s.quotes.Current()
	if !ok || !s.reusable(res, req.From, req.To, amt) {
		res, err = s.quotes.GetQuote(ctx, req.From, req.To, req.Amount)
		if err != nil {
			return SwapResult{}, err
		}
	}
	if !res.Quote.HasRoute() {
		return SwapResult{Quote: res}, domain.ErrNoQuote
	}

	tx, err := s.quotes.BuildSwap(ctx, res.Quote, wallet, req.SlippagePercent)
	if err != nil {
		return SwapResult{Quote: res}, err
	}
	out := SwapResult{ID: s.idgen.NewID(), Quote: res, Tx: tx}
	s.recordSwap(ctx, out, wallet, req.SlippagePercent)
	return out, nil
}

func (s *TradeService) recordSwap(ctx context.Context, r SwapResult, wallet string, slippage decimal.Decimal) {
	if s.swaps == nil {
		return
	}
	if !slippage.IsPositive() {
		slippage = decimal.NewFromInt(DefaultSlippagePercent)
	}
	rec := domain.SwapRecord{
		ID:          r.ID,
		Wallet:      wallet,
		SourceAsset: r.Quote.Quote.SourceAsset,
		DestAsset:   r.Quote.Quote.DestAsset,
		SrcAmount:   r.Quote.Quote.SourceAmount,
		DestAmount:  r.Quote.Quote.DestAmount,
		SlippageBps: slippage.Mul(decimal.NewFromInt(100)).IntPart(),
		Fallback:    r.Quote.IsFallback(),
		Tx:          r.Tx,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.swaps.Record(ctx, rec); err != nil {
		s.log.Warn("swap.record_failed", zap.String("id", r.ID), zap.Error(err))
	}
}

// PlaceOrder accepts a buy or cash-out order. Sells are checked against the known balance.
func (s *TradeService) PlaceOrder(ctx context.Context, req OrderRequest) (domain.Order, error) {
	if strings.TrimSpace(req.Amount) == "" || strings.TrimSpace(req.Symbol) == "" {
		return domain.Order{}, domain.ErrMissingInput
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return domain.Order{}, fmt.Errorf("%w: side %q", domain.ErrMissingInput, req.Side)
	}
	wallet, err := s.resolveWallet(req.Wallet)
	if err != nil {
		return domain.Order{}, err
	}
	asset, ok := s.quotes.Assets().Lookup(req.Symbol)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedAsset, req.Symbol)
	}
	amt, err := domain.ParseAmount(strings.TrimSpace(req.Amount))
	if err != nil {
		return domain.Order{}, err
	}
	if req.Side == domain.OrderSideSell {
		if err := s.ensureBalance(ctx, wallet, asset.Symbol, amt); err != nil {
			return domain.Order{}, err
		}
	}
	o := domain.Order{
		ID:        s.idgen.NewID(),
		Side:      req.Side,
		Wallet:    wallet,
		Symbol:    asset.Symbol,
		Amount:    amt,
		Status:    domain.OrderStatusPlaced,
		CreatedAt: s.clock.Now(),
	}
	if s.orders != nil {
		if err := s.orders.Create(ctx, o); err != nil {
			return domain.Order{}, fmt.Errorf("create order: %w", err)
		}
	}
	s.log.Info("order.placed",
		zap.String("id", o.ID),
		zap.String("side", string(o.Side)),
		zap.String("symbol", o.Symbol),
		zap.String("amount", o.Amount.String()),
	)
	return o, nil
}

func (s *TradeService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if s.orders == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.orders.GetByID(ctx, id)
}

func (s *TradeService) resolveWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" && s.session != nil {
		wallet = s.session.Address()
	}
	if wallet == "" {
		return "", domain.ErrWalletNotConnected
	}
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, wallet)
	}
	return wallet, nil
}

func (s *TradeService) ensureBalance(ctx context.Context, wallet, symbol string, amt decimal.Decimal) error {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	snap := s.balances.AllBalances(ctx, wallet)
	have := snap.Of(sym)
	if amt.GreaterThan(have) {
		return fmt.Errorf("%w: you only have %s %s available, requested %s", domain.ErrInsufficientBalance, have, sym, amt)
	}
	return nil
}

// reusable reports whether the displayed quote can back a swap: same request,
// authoritative, and younger than the quote TTL.
func (s *TradeService) reusable(res domain.QuoteResult, from, to string, amt decimal.Decimal) bool {
	if res.Kind != domain.QuoteAuthoritative || !sameQuote(res.Quote, from, to, amt) {
		return false
	}
	return s.clock.Now().Sub(res.Quote.ObtainedAt) <= s.quoteTTL
}

func sameQuote(q domain.Quote, from, to string, amt decimal.Decimal) bool {
	if !strings.EqualFold(q.SourceAsset, from) || !strings.EqualFold(q.DestAsset, to) {
		return false
	}
	qa, err := decimal.NewFromString(q.SourceAmount)
	return err == nil && qa.Equal(amt)
}
