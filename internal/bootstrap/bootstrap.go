package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"marketsync-service/internal/application"
	"marketsync-service/internal/config"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/grpc/pricefeed"
	httpserver "marketsync-service/internal/infrastructure/http"
	"marketsync-service/internal/infrastructure/worker"

	"go.uber.org/zap"
)

// API is the fully wired HTTP process.
type API struct {
	Config  config.Config
	Handler http.Handler
	Poller  *application.PricePoller
	Session *application.WalletSession
	Workers []worker.Worker
}

// Worker is the fully wired background process: the poller, the recorder
// that persists its snapshots and, when GRPCAddr is set, the price feed.
type Worker struct {
	Poller   *application.PricePoller
	Recorder *worker.SnapshotRecorder
	Feed     *pricefeed.Server
	GRPCAddr string
}

// cleanups runs in reverse order of acquisition.
type cleanups []func()

func (c *cleanups) add(f func()) { *c = append(*c, f) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

type core struct {
	cfg     config.Config
	log     *zap.Logger
	assets  *domain.AssetRegistry
	repos   Repos
	svcs    Services
	ext     Externals
	poller  *application.PricePoller
	ready   func(ctx context.Context) error
	cleanup cleanups
}

func buildCore(ctx context.Context) (*core, error) {
	c := &core{
		cfg: ProvideConfig(),
		log: ProvideLogger(),
	}
	assets, err := config.LoadAssets(c.cfg.AssetsFile)
	if err != nil {
		return nil, err
	}
	c.assets = assets
	db, closeDB, err := ProvideDB(ctx, c.log, c.cfg)
	if err != nil {
		return nil, err
	}
	c.cleanup.add(closeDB)
	c.repos = ProvideRepos(db)

	rdb, closeRedis, err := ProvideRedisClient(c.cfg)
	if err != nil {
		c.cleanup.run()
		return nil, err
	}
	c.cleanup.add(closeRedis)
	c.svcs = ProvideServices(rdb, c.cfg)
	c.ready = ProvideReadyCheck(db, rdb)

	ext, closeExt, err := ProvideExternals(ctx, c.cfg, c.assets, ProvideHTTPClient(c.cfg, c.log), c.log)
	if err != nil {
		c.cleanup.run()
		return nil, err
	}
	c.cleanup.add(closeExt)
	c.ext = ext

	c.poller = application.NewPricePoller(
		ext.Prices,
		ProvideAssetIDs(c.cfg, c.assets),
		c.cfg.PollInterval,
		ProvideOptions(c.log)...,
	)
	c.cleanup.add(c.poller.Stop)
	return c, nil
}

// seed warm-starts the poller from the shared cache so the first requests
// after a restart do not see an empty snapshot.
func (c *core) seed(ctx context.Context) {
	if c.svcs.Cache == nil {
		return
	}
	snap, at, err := c.svcs.Cache.LoadLatest(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		c.log.Warn("bootstrap.seed_failed", zap.Error(err))
	default:
		c.poller.Seed(snap, at)
		c.log.Info("bootstrap.seeded", zap.Int("assets", snap.Len()), zap.Time("fetched_at", at))
	}
}

// BuildAPI wires the HTTP process. The returned cleanup releases every
// acquired resource and stops the poller.
func BuildAPI(ctx context.Context) (*API, func(), error) {
	c, err := buildCore(ctx)
	if err != nil {
		return nil, nil, err
	}
	c.seed(ctx)

	opts := ProvideOptions(c.log)
	quotes := application.NewQuoteCoordinator(c.ext.Swaps, c.assets, c.cfg.Network, opts...)
	balances := application.NewBalanceProvider(c.ext.Wallet, c.assets, nil, opts...)
	session := application.NewWalletSession(c.ext.Wallet, opts...)
	trade := application.NewTradeService(quotes, balances, session, c.repos.Orders, c.repos.Swaps,
		append(opts, application.WithQuoteTTL(c.cfg.PollInterval))...)
	portfolio := application.NewPortfolioService(c.poller, balances, c.assets, opts...)

	srv := httpserver.NewServer(httpserver.Deps{
		Poller:      c.poller,
		Quotes:      quotes,
		Trade:       trade,
		Balances:    balances,
		Session:     session,
		Portfolio:   portfolio,
		History:     c.repos.History,
		Idempotency: c.svcs.Idem,
	})
	srv.SetReadyCheck(c.ready)

	api := &API{
		Config: c.cfg,
		Handler: httpserver.NewRouter(srv, httpserver.RouterOptions{
			RateLimit: c.cfg.APIRateLimit,
			RateBurst: c.cfg.APIRateBurst,
		}),
		Poller:  c.poller,
		Session: session,
	}
	if c.svcs.Cache != nil {
		// Recorder without history: keeps the shared cache current when no
		// dedicated worker runs.
		api.Workers = append(api.Workers, &worker.SnapshotRecorder{
			Source: c.poller,
			Cache:  c.svcs.Cache,
			Log:    c.log,
		})
	}
	if c.cfg.WalletWatch > 0 {
		api.Workers = append(api.Workers, &worker.WalletWatcher{
			Session:  session,
			Balances: balances,
			Every:    c.cfg.WalletWatch,
			Log:      c.log,
		})
	}
	return api, c.cleanup.run, nil
}

// BuildWorker wires the polling process that records snapshots to history
// storage and the shared cache.
func BuildWorker(ctx context.Context) (*Worker, func(), error) {
	c, err := buildCore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c.repos.History == nil && c.svcs.Cache == nil {
		c.log.Warn("bootstrap.worker_without_sinks", zap.String("storage", c.cfg.Storage))
	}
	w := &Worker{
		Poller: c.poller,
		Recorder: &worker.SnapshotRecorder{
			Source:  c.poller,
			History: c.repos.History,
			Cache:   c.svcs.Cache,
			Log:     c.log,
		},
		GRPCAddr: c.cfg.GRPCAddr,
	}
	if w.GRPCAddr != "" {
		w.Feed = pricefeed.NewServer(c.poller, c.log)
	}
	return w, c.cleanup.run, nil
}
