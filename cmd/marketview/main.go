package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptotracker/marketview/internal/app"
	"github.com/cryptotracker/marketview/internal/cache"
	"github.com/cryptotracker/marketview/internal/config"
	"github.com/cryptotracker/marketview/internal/database"
	"github.com/cryptotracker/marketview/internal/history"
	"github.com/cryptotracker/marketview/internal/hub"
	"github.com/cryptotracker/marketview/internal/metrics"
	"github.com/cryptotracker/marketview/internal/tracker"
	"github.com/cryptotracker/marketview/internal/version"
	"github.com/cryptotracker/marketview/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/marketview.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting marketview",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketview failed", "error", err)
		os.Exit(1)
	}

	logger.Info("marketview stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sources, err := app.NewSources(cfg, logger)
	if err != nil {
		return err
	}

	var (
		sinks  []tracker.Sink
		pool   *pgxpool.Pool
		quotes *cache.Quotes
		writer *history.Writer
	)

	// Price history
	if cfg.History.Enabled {
		db := cfg.Database.History
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)

		pool, err = database.Connect(ctx, db)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := history.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		writer = history.NewWriter(history.Config{
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
			BufferSize:    cfg.History.BufferSize,
		}, pool, logger)
		if err := writer.Start(ctx); err != nil {
			return err
		}
		sinks = append(sinks, writer)
	}

	// Latest-quote cache
	if cfg.Cache.Enabled {
		quotes, err = cache.New(ctx, cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			return err
		}
		defer quotes.Close()

		logger.Info("quote cache connected", "addr", cfg.Cache.Addr)
		sinks = append(sinks, quotes)
	}

	trackerCfg := app.TrackerConfig(cfg)

	// The recorder is a headless view that keeps the collection warm for
	// the REST API and feeds the sinks.
	recorder := tracker.New(trackerCfg, sources.Source(), nil,
		tracker.WithLogger(logger.With("component", "recorder")),
		tracker.WithSinks(sinks...),
		tracker.WithAutoRetry(),
		tracker.WithSizeObserver(func(n int) {
			metrics.CollectionSize.Set(float64(n))
		}),
	)
	recorder.Start(ctx)
	recorder.StartInitialLoad()

	sessions := hub.New(hub.Config{
		PingInterval:   cfg.Server.PingInterval,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 4096,
	}, trackerCfg, sources.Source,
		hub.WithLogger(logger),
		hub.WithCurrency(cfg.API.VSCurrency),
	)

	opts := []web.Option{
		web.WithLogger(logger),
		web.WithCoins(sources),
		web.WithWebsocket(sessions),
	}
	if pool != nil {
		opts = append(opts, web.WithHistory(pool))
	}
	if quotes != nil {
		opts = append(opts, web.WithQuotes(quotes))
	}
	server := web.NewServer(recorder, opts...)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr)
	}()

	logger.Info("marketview running",
		"addr", cfg.Server.Addr,
		"currency", cfg.API.VSCurrency,
		"history", cfg.History.Enabled,
		"cache", cfg.Cache.Enabled,
	)

	// Wait for shutdown
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http server shutdown", "error", serr)
	}
	if serr := sessions.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("hub shutdown", "error", serr)
	}
	if serr := recorder.Stop(shutdownCtx); serr != nil {
		logger.Warn("recorder stop", "error", serr)
	}
	if writer != nil {
		if serr := writer.Stop(shutdownCtx); serr != nil {
			logger.Warn("history writer stop", "error", serr)
		}
		logger.Info("history writer stats", "stats", writer.Stats())
	}

	return err
}
