package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL         = "https://api.coingecko.com/api/v3"
	DefaultKeyHeader       = "x-cg-demo-api-key"
	DefaultVSCurrency      = "usd"
	DefaultAPITimeout      = 15 * time.Second
	DefaultRateBurst       = 5
	DefaultRatePerSecond   = 0.5
	DefaultPerPage         = 50
	DefaultOrder           = "market_cap_desc"
	DefaultBaseInterval    = 45 * time.Second
	DefaultMinInterval     = 30 * time.Second
	DefaultMaxInterval     = 300 * time.Second
	DefaultMaxMultiplier   = 10
	DefaultPollConcurrency = 4
	DefaultSearchDebounce  = 250 * time.Millisecond
	DefaultServerAddr      = ":8080"
	DefaultPingInterval    = 15 * time.Second
	DefaultReadTimeout     = 60 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultBatchSize       = 1000
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 10000
	DefaultCacheAddr       = "localhost:6379"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultLogLevel        = "info"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.KeyHeader == "" {
		c.API.KeyHeader = DefaultKeyHeader
	}
	if c.API.VSCurrency == "" {
		c.API.VSCurrency = DefaultVSCurrency
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = DefaultRateBurst
	}
	if c.API.RateLimit.PerSecond == 0 {
		c.API.RateLimit.PerSecond = DefaultRatePerSecond
	}

	// Markets defaults
	if c.Markets.PerPage == 0 {
		c.Markets.PerPage = DefaultPerPage
	}
	if c.Markets.Order == "" {
		c.Markets.Order = DefaultOrder
	}

	// Poller defaults
	if c.Poller.BaseInterval == 0 {
		c.Poller.BaseInterval = DefaultBaseInterval
	}
	if c.Poller.MinInterval == 0 {
		c.Poller.MinInterval = DefaultMinInterval
	}
	if c.Poller.MaxInterval == 0 {
		c.Poller.MaxInterval = DefaultMaxInterval
	}
	if c.Poller.MaxMultiplier == 0 {
		c.Poller.MaxMultiplier = DefaultMaxMultiplier
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}

	// Search defaults
	if c.Search.Debounce == 0 {
		c.Search.Debounce = DefaultSearchDebounce
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.History)

	// History defaults
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultFlushInterval
	}
	if c.History.BufferSize == 0 {
		c.History.BufferSize = DefaultBufferSize
	}

	// Cache defaults
	if c.Cache.Addr == "" {
		c.Cache.Addr = DefaultCacheAddr
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
