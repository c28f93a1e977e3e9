package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.RateLimit.Burst < 1 {
		return errors.New("api.rate_limit.burst must be >= 1")
	}
	if c.API.RateLimit.PerSecond <= 0 {
		return errors.New("api.rate_limit.per_second must be > 0")
	}

	if c.Markets.PerPage < 1 || c.Markets.PerPage > 250 {
		return fmt.Errorf("markets.per_page must be between 1 and 250, got %d", c.Markets.PerPage)
	}

	if c.Poller.MinInterval > c.Poller.BaseInterval {
		return fmt.Errorf("poller.min_interval (%s) cannot exceed poller.base_interval (%s)", c.Poller.MinInterval, c.Poller.BaseInterval)
	}
	if c.Poller.BaseInterval > c.Poller.MaxInterval {
		return fmt.Errorf("poller.base_interval (%s) cannot exceed poller.max_interval (%s)", c.Poller.BaseInterval, c.Poller.MaxInterval)
	}
	if c.Poller.MaxMultiplier < 1 {
		return errors.New("poller.max_multiplier must be >= 1")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	if c.Search.Debounce < 0 {
		return errors.New("search.debounce must be >= 0")
	}

	if c.History.Enabled {
		if err := c.Database.History.validate("database.history"); err != nil {
			return err
		}
		if c.History.BatchSize < 1 {
			return errors.New("history.batch_size must be >= 1")
		}
		if c.History.BufferSize < 1 {
			return errors.New("history.buffer_size must be >= 1")
		}
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when cache is enabled")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}
