package config

import "time"

// Config is the root configuration for a marketview instance.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Markets  MarketsConfig  `yaml:"markets"`
	Poller   PollerConfig   `yaml:"poller"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds upstream pricing API settings.
type APIConfig struct {
	BaseURL    string          `yaml:"base_url"`
	APIKey     string          `yaml:"api_key"`
	KeyHeader  string          `yaml:"key_header"`  // Header carrying APIKey (demo or pro plan)
	VSCurrency string          `yaml:"vs_currency"` // Quote currency for prices
	Timeout    time.Duration   `yaml:"timeout"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds the request rate shared by every view.
type RateLimitConfig struct {
	Burst     int     `yaml:"burst"`
	PerSecond float64 `yaml:"per_second"`
}

// MarketsConfig holds listing settings.
type MarketsConfig struct {
	PerPage int    `yaml:"per_page"`
	Order   string `yaml:"order"`
}

// PollerConfig holds poll scheduler settings.
type PollerConfig struct {
	BaseInterval  time.Duration `yaml:"base_interval"`
	MinInterval   time.Duration `yaml:"min_interval"`
	MaxInterval   time.Duration `yaml:"max_interval"`
	MaxMultiplier int           `yaml:"max_multiplier"`
	Concurrency   int           `yaml:"concurrency"` // Pages refreshed at once per poll
}

// SearchConfig holds search settings.
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// ServerConfig holds HTTP and websocket settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// DatabaseConfig holds the price history database.
type DatabaseConfig struct {
	History DBConfig `yaml:"history"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HistoryConfig holds price history writer settings.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// CacheConfig holds the latest-quote cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
