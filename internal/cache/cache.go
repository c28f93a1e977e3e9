// Package cache stores the most recently fetched quote for each coin in
// Redis under latest:<id>, so the HTTP API can answer single-coin lookups
// without touching the upstream API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptotracker/marketview/internal/model"
)

const keyPrefix = "latest:"

// Quote is a cached record and the time it was observed.
type Quote struct {
	model.Record
	ObservedAt time.Time `json:"observed_at"`
}

// Config holds cache settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Quotes is a Redis-backed latest-quote cache. It is a tracker sink.
type Quotes struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	errors  atomic.Int64
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Quotes, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.TTL, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Quotes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Quotes{
		client:  client,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Key returns the Redis key for a coin.
func Key(id string) string {
	return keyPrefix + id
}

// Consume stores each record with the cache TTL in one pipeline.
func (q *Quotes) Consume(records []model.Record, at time.Time) {
	if len(records) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.Set(ctx, records, at); err != nil {
		q.errors.Add(1)
		q.logger.Warn("cache quotes failed", "count", len(records), "err", err)
	}
}

// Set stores records observed at the given time.
func (q *Quotes) Set(ctx context.Context, records []model.Record, at time.Time) error {
	pipe := q.client.Pipeline()
	for _, r := range records {
		data, err := json.Marshal(Quote{Record: r, ObservedAt: at.UTC()})
		if err != nil {
			return fmt.Errorf("encode quote %s: %w", r.ID, err)
		}
		pipe.Set(ctx, Key(r.ID), data, q.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}
	return nil
}

// Get returns the cached quote for id, or nil if none is cached.
func (q *Quotes) Get(ctx context.Context, id string) (*Quote, error) {
	data, err := q.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read quote %s: %w", id, err)
	}

	var quote Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", id, err)
	}
	return &quote, nil
}

// Errors returns the number of failed Consume writes.
func (q *Quotes) Errors() int64 {
	return q.errors.Load()
}

// Close closes the Redis connection.
func (q *Quotes) Close() error {
	return q.client.Close()
}
