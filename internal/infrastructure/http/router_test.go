package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/provider"

	"github.com/stretchr/testify/require"
)

const wallet = "0x52908400098527886E0F7030069857D2E4169EE7"

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) TryReserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func (m *memOrders) Create(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders == nil {
		m.orders = map[string]domain.Order{}
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

// downAggregator fails every call like an unreachable aggregator.
type downAggregator struct{}

func (downAggregator) Price(context.Context, application.SwapQuoteRequest) (application.PriceRoute, error) {
	return application.PriceRoute{}, errors.New("connection refused")
}

func (downAggregator) BuildTransaction(context.Context, application.BuildTxRequest) (domain.TransactionDescriptor, error) {
	return domain.TransactionDescriptor{}, errors.New("connection refused")
}

func (downAggregator) Tokens(context.Context, int64) ([]application.Token, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	srv  *Server
	h    http.Handler
	fake *provider.Fake
}

func setup(t *testing.T, agg application.SwapAggregator, opts RouterOptions) *fixture {
	t.Helper()
	assets := domain.DefaultAssets()
	fake := provider.NewFake(assets, wallet)
	if agg == nil {
		agg = fake
	}
	poller := application.NewPricePoller(fake, assets.CoinIDs(), time.Minute)
	t.Cleanup(poller.Stop)
	quotes := application.NewQuoteCoordinator(agg, assets, 1)
	balances := application.NewBalanceProvider(fake, assets, nil)
	session := application.NewWalletSession(fake)
	trade := application.NewTradeService(quotes, balances, session, &memOrders{}, nil)
	srv := NewServer(Deps{
		Poller:      poller,
		Quotes:      quotes,
		Trade:       trade,
		Balances:    balances,
		Session:     session,
		Portfolio:   application.NewPortfolioService(poller, balances, assets),
		Idempotency: &memIdempotency{},
	})
	return &fixture{srv: srv, h: NewRouter(srv, opts), fake: fake}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestReadyz_FailingCheck(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	f.srv.SetReadyCheck(func(context.Context) error { return errors.New("db down") })
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"code":503,"message":"db not ready"}`, rec.Body.String())
}

func TestPrices_RefreshThenRead(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodGet, "/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[pricesResponse](t, rec)
	require.Empty(t, empty.Prices)
	require.Nil(t, empty.LastUpdatedAt)

	rec = f.do(t, http.MethodPost, "/prices/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[pricesResponse](t, rec)
	require.Equal(t, "2500", got.Prices["ethereum"].USD.String())
	require.NotNil(t, got.LastUpdatedAt)
}

func TestPriceHistory_NotConfigured(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	rec := f.do(t, http.MethodGet, "/prices/history?asset=ethereum", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetQuote(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodGet, "/quotes?src=ETH&dest=USDC&amount=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[map[string]any](t, rec)
	require.Equal(t, "2500.000000", q["dest_amount"])
	require.Equal(t, "authoritative", q["kind"])
	require.Equal(t, false, q["fallback"])

	rec = f.do(t, http.MethodGet, "/quotes?src=ETH&dest=USDC", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/quotes?src=ETH&dest=DOGE&amount=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuote_FallbackIsFlagged(t *testing.T) {
	f := setup(t, downAggregator{}, RouterOptions{})
	rec := f.do(t, http.MethodGet, "/quotes?src=ETH&dest=USDC&amount=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[map[string]any](t, rec)
	require.Equal(t, true, q["fallback"])
	require.Equal(t, "99.500000", q["dest_amount"])
	require.Equal(t, "7.50", q["gas_cost_usd"])
	require.Contains(t, q["reason"], "connection refused")
}

func TestPrepareSwap(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	body := map[string]any{"wallet": wallet, "from": "ETH", "to": "USDC", "amount": "1", "slippage_percent": "0.5"}

	rec := f.do(t, http.MethodPost, "/swaps", body, idempotencyHeader, "k1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	tx := resp["transaction"].(map[string]any)
	require.Equal(t, wallet, tx["from"])
	require.Equal(t, "1000000000000000000", tx["value"])

	rec = f.do(t, http.MethodPost, "/swaps", body, idempotencyHeader, "k1")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPrepareSwap_Rejections(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodPost, "/swaps", map[string]any{"wallet": wallet, "from": "ETH", "to": "USDC", "amount": "10"}, idempotencyHeader, "k2")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "you only have")

	// a rejected request frees its key
	rec = f.do(t, http.MethodPost, "/swaps", map[string]any{"wallet": wallet, "from": "ETH", "to": "USDC", "amount": "1"}, idempotencyHeader, "k2")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/swaps", map[string]any{"from": "ETH", "to": "USDC", "amount": "1"})
	require.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/swaps", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrepareSwap_AggregatorDown(t *testing.T) {
	f := setup(t, downAggregator{}, RouterOptions{})
	rec := f.do(t, http.MethodPost, "/swaps", map[string]any{"wallet": wallet, "from": "ETH", "to": "USDC", "amount": "1"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/tokens", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBalances(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodGet, "/balances/"+wallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[balancesResponse](t, rec)
	require.Equal(t, domain.BalanceFromChain, b.NativeSource)
	require.Equal(t, "2.5479", b.Balances["ETH"].String())
	require.Equal(t, "1250.75", b.Balances["USDC"].String())

	rec = f.do(t, http.MethodGet, "/balances/not-an-address", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodPost, "/orders", map[string]any{"side": "SELL", "wallet": wallet, "symbol": "UNI", "amount": "10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[orderResponse](t, rec)
	require.Equal(t, "sell", o.Side)

	rec = f.do(t, http.MethodGet, "/orders/"+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/orders", map[string]any{"side": "sell", "wallet": wallet, "symbol": "UNI", "amount": "1000"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWalletSession(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodGet, "/wallet", nil)
	require.JSONEq(t, `{"connected":false}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/wallet/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, walletResponse{Address: wallet, Connected: true}, decode[walletResponse](t, rec))

	// connected session wallet is used when the body omits it
	rec = f.do(t, http.MethodPost, "/orders", map[string]any{"side": "buy", "symbol": "ETH", "amount": "1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/wallet/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/wallet", nil)
	require.JSONEq(t, `{"connected":false}`, rec.Body.String())
}

func TestTokensAndPortfolio(t *testing.T) {
	f := setup(t, nil, RouterOptions{})

	rec := f.do(t, http.MethodGet, "/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]application.Token](t, rec), 6)

	rec = f.do(t, http.MethodGet, "/portfolio/"+wallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[portfolioResponse](t, rec)
	require.Len(t, p.Lines, 6)
	require.True(t, p.TotalUSD.IsPositive())
	require.NotNil(t, p.PricesAt)
}

func TestRateLimit(t *testing.T) {
	f := setup(t, nil, RouterOptions{RateLimit: 0.001, RateBurst: 1})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/wallet", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/wallet", nil).Code)
	// probes are not limited
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
}
