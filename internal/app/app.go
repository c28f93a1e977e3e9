// Package app assembles upstream sources from configuration for the
// marketview binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cryptotracker/marketview/internal/api"
	"github.com/cryptotracker/marketview/internal/config"
	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/poller"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// Sources hands out API clients that share one transport and one rate
// limiter. Each client has its own gateway, so cancelling one view's
// requests never touches another's.
type Sources struct {
	cfg       config.APIConfig
	order     string
	transport fetch.Transport
	limiter   fetch.Limiter
	logger    *slog.Logger
}

// NewSources builds the shared transport and limiter.
func NewSources(cfg *config.Config, logger *slog.Logger) (*Sources, error) {
	transport, err := fetch.NewHTTPTransport(cfg.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	return NewSourcesWithTransport(cfg, transport, logger), nil
}

// NewSourcesWithTransport is NewSources over an existing transport.
func NewSourcesWithTransport(cfg *config.Config, transport fetch.Transport, logger *slog.Logger) *Sources {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sources{
		cfg:       cfg.API,
		order:     cfg.Markets.Order,
		transport: transport,
		limiter:   fetch.NewTokenBucket(cfg.API.RateLimit.Burst, cfg.API.RateLimit.PerSecond),
		logger:    logger,
	}
}

// Client returns a client with a fresh gateway.
func (s *Sources) Client() *api.Client {
	gateway := fetch.NewGateway(s.transport,
		fetch.WithLimiter(s.limiter),
		fetch.WithLogger(s.logger),
	)
	return api.NewClient(s.cfg.BaseURL, gateway,
		api.WithAPIKey(s.cfg.APIKey, s.cfg.KeyHeader),
		api.WithVSCurrency(s.cfg.VSCurrency),
		api.WithOrder(s.order),
		api.WithLogger(s.logger),
	)
}

// Source returns Client as a tracker.Source.
func (s *Sources) Source() tracker.Source {
	return s.Client()
}

// Coin loads one coin's detail on a client of its own, so concurrent
// lookups of the same coin do not supersede each other.
func (s *Sources) Coin(ctx context.Context, id string) (*model.CoinDetail, error) {
	return s.Client().Coin(ctx, id)
}

// TrackerConfig maps configuration onto tracker settings.
func TrackerConfig(cfg *config.Config) tracker.Config {
	return tracker.Config{
		PerPage:        cfg.Markets.PerPage,
		Concurrency:    cfg.Poller.Concurrency,
		SearchDebounce: cfg.Search.Debounce,
		Poll: poller.Config{
			BaseInterval:  cfg.Poller.BaseInterval,
			MinInterval:   cfg.Poller.MinInterval,
			MaxInterval:   cfg.Poller.MaxInterval,
			MaxMultiplier: cfg.Poller.MaxMultiplier,
		},
	}
}
