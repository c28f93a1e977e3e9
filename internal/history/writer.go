package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cryptotracker/marketview/internal/metrics"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/queue"
)

const insertTick = `
	INSERT INTO market_ticks (coin_id, observed_at, rank, price, market_cap, volume, change_24h)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (coin_id, observed_at) DO NOTHING
`

// Config holds writer configuration.
type Config struct {
	BatchSize     int           // Max rows per insert batch (default: 1000)
	FlushInterval time.Duration // Max time a tick waits in the queue (default: 1s)
	BufferSize    int           // Queue limit; oldest ticks are shed beyond it (default: 10000)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Batcher sends a pgx batch. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Metrics holds writer counters.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// Writer batches ticks into market_ticks.
type Writer struct {
	cfg    Config
	db     Batcher
	input  *queue.Queue[model.Tick]
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushMu sync.Mutex
	mu      sync.Mutex
	metrics Metrics
}

// NewWriter creates a Writer inserting through db.
func NewWriter(cfg Config, db Batcher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	initial := cfg.BatchSize
	if cfg.BufferSize < initial {
		initial = cfg.BufferSize
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		input:  queue.New[model.Tick](initial, cfg.BufferSize),
		logger: logger,
	}
}

// Consume queues one tick per record. It never blocks.
func (w *Writer) Consume(records []model.Record, at time.Time) {
	ticks := make([]model.Tick, len(records))
	for i, r := range records {
		ticks[i] = model.TickFromRecord(r, at)
	}
	if !w.input.Push(ticks...) {
		w.logger.Debug("history writer closed, ticks discarded", "count", len(ticks))
	}
}

// Start begins flushing queued ticks.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("history writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop stops the loop and flushes what is left using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping history writer")

	if w.cancel != nil {
		w.cancel()
	}
	w.input.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("history writer stop timed out")
		return ctx.Err()
	}

	w.flushAll(ctx)
	w.logger.Info("history writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.metrics
	m.Dropped = w.input.Stats().Dropped
	return m
}

func (w *Writer) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushAll(w.ctx)
		case <-w.input.Ready():
			for w.input.Len() >= w.cfg.BatchSize {
				w.flush(w.ctx)
			}
		}
	}
}

func (w *Writer) flushAll(ctx context.Context) {
	for w.input.Len() > 0 {
		if !w.flush(ctx) {
			return
		}
	}
}

// flush writes one batch. It reports false if the insert failed.
func (w *Writer) flush(ctx context.Context) bool {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	ticks := w.input.Drain(w.cfg.BatchSize)
	if len(ticks) == 0 {
		return true
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, ticks)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(ticks))
		metrics.HistoryErrors.Inc()
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return false
	}

	inserted := int64(len(ticks) - conflicts)
	metrics.HistoryInserts.Add(float64(inserted))
	w.mu.Lock()
	w.metrics.Inserts += inserted
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("flushed ticks",
		"count", len(ticks),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return true
}

// tickRow is the column form of a tick.
type tickRow struct {
	CoinID     string
	ObservedAt time.Time
	Rank       *int
	Price      decimal.NullDecimal
	MarketCap  decimal.NullDecimal
	Volume     decimal.NullDecimal
	Change24h  decimal.NullDecimal
}

func transform(t model.Tick) tickRow {
	row := tickRow{
		CoinID:     t.CoinID,
		ObservedAt: t.ObservedAt.UTC(),
		Price:      t.Price,
		MarketCap:  t.MarketCap,
		Volume:     t.Volume,
		Change24h:  t.Change24h,
	}
	if t.Rank > 0 {
		rank := t.Rank
		row.Rank = &rank
	}
	return row
}

// batchInsert inserts ticks using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, ticks []model.Tick) (conflicts int, err error) {
	if w.db == nil {
		return 0, errors.New("no database configured")
	}

	batch := &pgx.Batch{}
	for _, t := range ticks {
		r := transform(t)
		batch.Queue(insertTick, r.CoinID, r.ObservedAt, r.Rank, r.Price, r.MarketCap, r.Volume, r.Change24h)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range ticks {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
