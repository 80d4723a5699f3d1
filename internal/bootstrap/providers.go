package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"marketsync-service/internal/application"
	"marketsync-service/internal/config"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/chain"
	"marketsync-service/internal/infrastructure/grpc/pricefeed"
	"marketsync-service/internal/infrastructure/httpx"
	"marketsync-service/internal/infrastructure/logx"
	"marketsync-service/internal/infrastructure/metrics"
	"marketsync-service/internal/infrastructure/pg"
	"marketsync-service/internal/infrastructure/provider"
	redisstore "marketsync-service/internal/infrastructure/redis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required for STORAGE=pg")

func noop() {}

func ProvideLogger() *zap.Logger { return logx.L() }

func ProvideConfig() config.Config { return config.Load() }

func ProvideOptions(log *zap.Logger) []application.Option {
	return []application.Option{
		application.WithLogger(log),
		application.WithMetrics(metrics.Prom{}),
	}
}

// ProvideAssetIDs returns the configured price-service ids, or every registry asset.
func ProvideAssetIDs(cfg config.Config, assets *domain.AssetRegistry) []string {
	if len(cfg.AssetIDs) > 0 {
		return cfg.AssetIDs
	}
	return assets.CoinIDs()
}

func ProvideHTTPClient(cfg config.Config, log *zap.Logger) *httpx.Client {
	return &httpx.Client{
		HTTP:       &http.Client{Timeout: cfg.RequestTimeout},
		MaxRetries: cfg.HTTPMaxRetries,
		Log:        log,
	}
}

// ProvideDB connects to Postgres when STORAGE=pg. Any other storage value
// returns a nil DB and the service runs without persistence.
func ProvideDB(ctx context.Context, log *zap.Logger, cfg config.Config) (*pg.DB, func(), error) {
	if cfg.Storage != "pg" {
		return nil, noop, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, noop, ErrMissingDBURL
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, noop, err
	}
	if err := pg.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, noop, err
	}
	cleanup := func() {
		log.Info("closing pg")
		db.Close()
	}
	return db, cleanup, nil
}

type Repos struct {
	History application.PriceHistoryRepo
	Orders  application.OrderRepo
	Swaps   application.SwapRepo
}

func ProvideRepos(db *pg.DB) Repos {
	if db == nil {
		return Repos{}
	}
	return Repos{
		History: pg.NewPriceRepo(db),
		Orders:  pg.NewOrderRepo(db),
		Swaps:   pg.NewSwapRepo(db),
	}
}

// ProvideRedisClient returns nil when REDIS_ADDR is unset.
func ProvideRedisClient(cfg config.Config) (*redis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, noop, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

type Services struct {
	Idem  application.IdempotencyStore
	Cache application.SnapshotCache
}

func ProvideServices(client *redis.Client, cfg config.Config) Services {
	if client == nil {
		return Services{Idem: application.NoopIdempotency{}}
	}
	return Services{
		Idem:  redisstore.New(client, cfg.RedisTTL),
		Cache: redisstore.NewSnapshotCache(client, 0),
	}
}

type Externals struct {
	Prices application.PriceSource
	Swaps  application.SwapAggregator
	Wallet application.WalletProvider
}

// ProvideExternals selects live adapters (PROVIDER=live) or the in-process
// fake. PRICE_FEED_ADDR and CHAIN_RPC_URL override the price source and the
// wallet in either mode.
func ProvideExternals(ctx context.Context, cfg config.Config, assets *domain.AssetRegistry, hc *httpx.Client, log *zap.Logger) (Externals, func(), error) {
	var ext Externals
	switch cfg.Provider {
	case "live":
		var lim *rate.Limiter
		if cfg.PriceRateLimit > 0 {
			lim = rate.NewLimiter(rate.Limit(cfg.PriceRateLimit), 1)
		}
		ext.Prices = &provider.CoinGecko{BaseURL: cfg.PriceAPIBase, Client: hc, Limiter: lim}
		ext.Swaps = &provider.ParaSwap{BaseURL: cfg.SwapAPIBase, Client: hc}
	default:
		fake := provider.NewFake(assets, cfg.FakeAccount)
		ext.Prices, ext.Swaps, ext.Wallet = fake, fake, fake
	}
	var closers []func()
	if cfg.PriceFeedAddr != "" {
		feed, closeFeed, err := pricefeed.New(cfg.PriceFeedAddr)
		if err != nil {
			return Externals{}, noop, err
		}
		feed.Timeout = cfg.RequestTimeout
		ext.Prices = feed
		closers = append(closers, closeFeed)
	}
	if cfg.ChainRPCURL != "" {
		w, err := chain.Dial(ctx, cfg.ChainRPCURL, log)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return Externals{}, noop, err
		}
		ext.Wallet = w
		closers = append(closers, w.Close)
	}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	log.Info("externals.selected",
		zap.String("provider", cfg.Provider),
		zap.Bool("chain_rpc", cfg.ChainRPCURL != ""),
		zap.Bool("price_feed", cfg.PriceFeedAddr != ""),
		zap.Bool("wallet", ext.Wallet != nil),
	)
	return ext, cleanup, nil
}

// ProvideReadyCheck pings every configured backing store.
func ProvideReadyCheck(db *pg.DB, client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				return err
			}
		}
		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}
