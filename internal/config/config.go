package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port         string
	Storage      string
	DatabaseURL  string
	APIRateLimit float64
	APIRateBurst int
	// Providers
	Provider       string
	PriceAPIBase   string
	PriceRateLimit float64
	SwapAPIBase    string
	ChainRPCURL    string
	Network        int64
	HTTPMaxRetries uint64
	RequestTimeout time.Duration
	// PriceFeedAddr points the API's poller at a worker's gRPC price feed.
	PriceFeedAddr string
	// GRPCAddr is the worker's price feed listen address; empty disables it.
	GRPCAddr string
	// Poller
	PollInterval time.Duration
	AssetIDs     []string
	// AssetsFile is an optional YAML token table replacing the built-in one.
	AssetsFile string
	// Wallet
	WalletWatch time.Duration
	// FakeAccount is the account the fake wallet exposes (PROVIDER=fake only).
	FakeAccount string
	// Redis (idempotency, snapshot cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func floatDef(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func listDef(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults.
// An empty ASSET_IDS means "every asset in the registry".
func Load() Config {
	return Config{
		Env:            getEnv("ENV", "local"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnv("PORT", DefaultHTTPPort),
		Storage:        getEnv("STORAGE", "memory"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		APIRateLimit:   floatDef(getEnv("API_RATE_LIMIT", ""), DefaultAPIRateLimit),
		APIRateBurst:   atoiDef(getEnv("API_RATE_BURST", ""), DefaultAPIRateBurst),
		Provider:       getEnv("PROVIDER", "fake"),
		PriceAPIBase:   getEnv("PRICE_API_BASE", "https://api.coingecko.com/api/v3"),
		PriceRateLimit: floatDef(getEnv("PRICE_RATE_LIMIT", ""), DefaultPriceRateLimit),
		SwapAPIBase:    getEnv("SWAP_API_BASE", "https://apiv5.paraswap.io"),
		ChainRPCURL:    getEnv("CHAIN_RPC_URL", ""),
		Network:        int64(atoiDef(getEnv("NETWORK_ID", "1"), 1)),
		HTTPMaxRetries: uint64(atoiDef(getEnv("HTTP_MAX_RETRIES", "0"), 0)),
		RequestTimeout: time.Duration(atoiDef(getEnv("REQUEST_TIMEOUT_MS", "10000"), 10000)) * time.Millisecond,
		PriceFeedAddr:  getEnv("PRICE_FEED_ADDR", ""),
		GRPCAddr:       getEnv("GRPC_ADDR", ""),
		PollInterval:   time.Duration(atoiDef(getEnv("POLL_INTERVAL_MS", "30000"), 30000)) * time.Millisecond,
		AssetIDs:       listDef(getEnv("ASSET_IDS", "")),
		AssetsFile:     getEnv("ASSETS_FILE", ""),
		WalletWatch:    time.Duration(atoiDef(getEnv("WALLET_WATCH_MS", "0"), 0)) * time.Millisecond,
		FakeAccount:    getEnv("FAKE_ACCOUNT", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        atoiDef(getEnv("REDIS_DB", "0"), 0),
		RedisTTL:       time.Duration(atoiDef(getEnv("IDEMPOTENCY_TTL_MS", "86400000"), 86400000)) * time.Millisecond,
	}
}
