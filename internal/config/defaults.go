package config

import "time"

const (
	DefaultHTTPPort        = "8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultAPIRateLimit    = 20
	DefaultAPIRateBurst    = 40
	// Public price APIs allow roughly 30 calls per minute without a key.
	DefaultPriceRateLimit = 0.5
	DefaultPGMaxConns     = 5
	DefaultPGMinConns     = 1
)
