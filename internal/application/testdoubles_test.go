package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"marketsync-service/internal/domain"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

var errBoom = errors.New("boom")

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "id-" + big.NewInt(int64(s.n)).String()
}

type fakePriceSource struct {
	mu     sync.Mutex
	calls  int
	prices map[string]domain.AssetPrice
	err    error

	// gate, when set, holds every call until it is closed.
	gate      chan struct{}
	ignoreCtx bool
	started   chan struct{}
}

func (f *fakePriceSource) SimplePrices(ctx context.Context, ids []string) (map[string]domain.AssetPrice, error) {
	f.mu.Lock()
	f.calls++
	prices, err, gate, started, ignoreCtx := f.prices, f.err, f.gate, f.started, f.ignoreCtx
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.AssetPrice, len(ids))
	for _, id := range ids {
		if p, ok := prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePriceSource) set(prices map[string]domain.AssetPrice, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices, f.err = prices, err
}

func (f *fakePriceSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAggregator struct {
	mu           sync.Mutex
	priceCalls   int
	buildCalls   int
	route        PriceRoute
	priceErr     error
	lastPriceReq SwapQuoteRequest
	lastBuild    BuildTxRequest
	tx           domain.TransactionDescriptor
	buildErr     error
	tokens       []Token
	priceFn      func(ctx context.Context, req SwapQuoteRequest) (PriceRoute, error)
}

func (f *fakeAggregator) Price(ctx context.Context, req SwapQuoteRequest) (PriceRoute, error) {
	f.mu.Lock()
	f.priceCalls++
	f.lastPriceReq = req
	fn, route, err := f.priceFn, f.route, f.priceErr
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return route, err
}

func (f *fakeAggregator) BuildTransaction(_ context.Context, req BuildTxRequest) (domain.TransactionDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildCalls++
	f.lastBuild = req
	if f.buildErr != nil {
		return domain.TransactionDescriptor{}, f.buildErr
	}
	return f.tx, nil
}

func (f *fakeAggregator) Tokens(context.Context, int64) ([]Token, error) {
	return f.tokens, nil
}

func (f *fakeAggregator) counts() (price, build int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priceCalls, f.buildCalls
}

type fakeWallet struct {
	mu        sync.Mutex
	accounts  []string
	requested []string
	accErr    error
	balance   *big.Int
	balErr    error
}

func (f *fakeWallet) Accounts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accErr != nil {
		return nil, f.accErr
	}
	return append([]string(nil), f.accounts...), nil
}

func (f *fakeWallet) RequestAccounts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accErr != nil {
		return nil, f.accErr
	}
	return append([]string(nil), f.requested...), nil
}

func (f *fakeWallet) Balance(context.Context, string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balErr != nil {
		return nil, f.balErr
	}
	return f.balance, nil
}

func (f *fakeWallet) setAccounts(a []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = a
}

func (f *fakeWallet) setBalance(v *big.Int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance, f.balErr = v, err
}

func ether(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	err    error
}

func (f *fakeOrderRepo) Create(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.orders == nil {
		f.orders = map[string]domain.Order{}
	}
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

type fakeSwapRepo struct {
	mu      sync.Mutex
	records []domain.SwapRecord
}

func (f *fakeSwapRepo) Record(_ context.Context, r domain.SwapRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}
