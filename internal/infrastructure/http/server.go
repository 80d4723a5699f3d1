package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/logx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const idempotencyHeader = "X-Idempotency-Key"

// Deps are the application components served over HTTP. History and
// Idempotency may be nil.
type Deps struct {
	Poller      *application.PricePoller
	Quotes      *application.QuoteCoordinator
	Trade       *application.TradeService
	Balances    *application.BalanceProvider
	Session     *application.WalletSession
	Portfolio   *application.PortfolioService
	History     application.PriceHistoryRepo
	Idempotency application.IdempotencyStore
}

type Server struct {
	Deps
	ping func(ctx context.Context) error
}

func NewServer(d Deps) *Server {
	if d.Idempotency == nil {
		d.Idempotency = application.NoopIdempotency{}
	}
	return &Server{Deps: d}
}

// SetReadyCheck installs the dependency probe used by /readyz.
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

func (s *Server) GetPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toPrices(s.Poller.State()))
}

func (s *Server) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	if err := s.Poller.RefetchNow(r.Context()); err != nil {
		logx.WithFields(r.Context()).Warn("prices.refresh_failed", zap.Error(err))
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPrices(s.Poller.State()))
}

func (s *Server) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "price history storage is not configured")
		return
	}
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))
	if asset == "" {
		writeError(w, http.StatusBadRequest, "asset is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.History.History(r.Context(), asset, limit)
	if err != nil {
		fail(w, err)
		return
	}
	out := make([]priceRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, priceRecordResponse{AssetID: rec.AssetID, USD: rec.USD, Change24h: rec.Change24h, FetchedAt: rec.FetchedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.Quotes.GetQuote(r.Context(), q.Get("src"), q.Get("dest"), q.Get("amount"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuote(res))
}

func (s *Server) PrepareSwap(w http.ResponseWriter, r *http.Request) {
	var body swapRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.idempotent(w, r, func() (int, any, error) {
		res, err := s.Trade.PrepareSwap(r.Context(), application.SwapRequest{
			Wallet:          body.Wallet,
			From:            body.From,
			To:              body.To,
			Amount:          body.Amount,
			SlippagePercent: body.SlippagePercent,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, swapResponse{ID: res.ID, Quote: toQuote(res.Quote), Tx: res.Tx}, nil
	})
}

func (s *Server) GetBalances(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	snap := s.Balances.AllBalances(r.Context(), addr)
	writeJSON(w, http.StatusOK, balancesResponse{
		Address:      snap.Address,
		Balances:     snap.Balances,
		NativeSource: snap.NativeSource,
		TakenAt:      snap.TakenAt,
	})
}

func (s *Server) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body orderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.idempotent(w, r, func() (int, any, error) {
		o, err := s.Trade.PlaceOrder(r.Context(), application.OrderRequest{
			Side:   domain.OrderSide(strings.ToLower(body.Side)),
			Wallet: body.Wallet,
			Symbol: body.Symbol,
			Amount: body.Amount,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toOrder(o), nil
	})
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Trade.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (s *Server) GetWallet(w http.ResponseWriter, _ *http.Request) {
	addr := s.Session.Address()
	writeJSON(w, http.StatusOK, walletResponse{Address: addr, Connected: addr != ""})
}

func (s *Server) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := s.Session.Connect(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{Address: addr, Connected: true})
}

func (s *Server) DisconnectWallet(w http.ResponseWriter, _ *http.Request) {
	s.Session.Disconnect()
	writeJSON(w, http.StatusOK, walletResponse{})
}

func (s *Server) GetTokens(w http.ResponseWriter, r *http.Request) {
	toks, err := s.Quotes.Tokens(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if toks == nil {
		toks = []application.Token{}
	}
	writeJSON(w, http.StatusOK, toks)
}

func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	p, err := s.Portfolio.Valuation(r.Context(), addr)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolio(p))
}

type releaser interface {
	Release(ctx context.Context, key string) error
}

// idempotent reserves the X-Idempotency-Key (when present) before running fn.
// A failed request releases its key so the client can retry.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, fn func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	log := logx.WithFields(r.Context())
	if key != "" {
		ok, err := s.Idempotency.TryReserve(r.Context(), key)
		if err != nil {
			log.Error("idempotency.reserve_failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusConflict, "duplicate request")
			return
		}
	}
	status, body, err := fn()
	if err != nil {
		if rel, ok := s.Idempotency.(releaser); ok && key != "" {
			if rerr := rel.Release(r.Context(), key); rerr != nil {
				log.Warn("idempotency.release_failed", zap.Error(rerr))
			}
		}
		fail(w, err)
		return
	}
	writeJSON(w, status, body)
}
