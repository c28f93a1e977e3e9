package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cryptotracker/marketview/internal/market"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/poller"
)

// Source fetches pages of market records.
type Source interface {
	MarketsPage(ctx context.Context, page, perPage int) ([]model.Record, error)
	CancelAll()
}

// Config holds tracker configuration.
type Config struct {
	PerPage        int           // Records per page (default: 50)
	Concurrency    int           // Max pages refreshed at once by a poll (default: 4)
	SearchDebounce time.Duration // Delay before a query is applied (default: 250ms)
	Poll           poller.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PerPage:        50,
		Concurrency:    4,
		SearchDebounce: 250 * time.Millisecond,
		Poll:           poller.DefaultConfig(),
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock sets the clock used for poll timers and search debouncing.
func WithClock(c poller.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithNow sets the time source for LastUpdated stamps.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithSinks adds sinks that receive every fetched batch.
func WithSinks(sinks ...Sink) Option {
	return func(t *Tracker) {
		t.sinks = append(t.sinks, sinks...)
	}
}

// WithSizeObserver registers a callback invoked with the canonical
// collection size after each publish.
func WithSizeObserver(f func(n int)) Option {
	return func(t *Tracker) {
		t.sizeObserver = f
	}
}

// WithAutoRetry keeps the poll timer running after a failed initial load,
// so a tracker with no user to press retry recovers on its own. The next
// successful poll populates the first page.
func WithAutoRetry() Option {
	return func(t *Tracker) {
		t.autoRetry = true
	}
}

// Tracker keeps one view's collection synchronized with the upstream API.
type Tracker struct {
	id           string
	cfg          Config
	source       Source
	listener     Listener
	sinks        []Sink
	sched        *poller.Scheduler
	clock        poller.Clock
	now          func() time.Time
	sizeObserver func(int)
	autoRetry    bool
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	view atomic.Pointer[View]

	// Loop-owned state.
	canonical        []model.Record
	query            string
	page             int
	pendingPage      int
	hasMore          bool
	loaded           bool
	loading          bool
	polling          bool
	deferredLoadMore bool
	initialCancelled bool
	visible          bool
	rateLimited      bool
	retryIn          time.Duration
	lastUpdated      time.Time
	lastErr          string
	loadMoreShown    bool
	epoch            uint64
	searchTimer      poller.Timer
	searchGen        uint64
}

// New creates a Tracker reading from source and notifying listener.
// A nil listener discards notifications.
func New(cfg Config, source Source, listener Listener, opts ...Option) *Tracker {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}

	t := &Tracker{
		id:       uuid.NewString(),
		cfg:      cfg,
		source:   source,
		listener: listener,
		clock:    poller.SystemClock{},
		now:      time.Now,
		logger:   slog.Default(),
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		visible:  true,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.With("tracker", t.id)
	t.sched = poller.New(cfg.Poll, t.onTimer,
		poller.WithClock(t.clock),
		poller.WithLogger(t.logger),
	)
	t.view.Store(&View{})

	return t
}

// ID returns the tracker's instance ID.
func (t *Tracker) ID() string {
	return t.id
}

// Start runs the event loop until ctx is cancelled or Teardown is called.
func (t *Tracker) Start(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.run()

	t.logger.Debug("tracker started", "per_page", t.cfg.PerPage)
}

// Teardown clears the poll timer, cancels every in-flight request and
// stops the event loop. It does not wait; see Stop.
func (t *Tracker) Teardown() {
	if t.cancel != nil {
		t.cancel()
	}
	t.sched.Stop()
	t.source.CancelAll()
}

// Stop tears the tracker down and waits for its goroutines to exit.
func (t *Tracker) Stop(ctx context.Context) error {
	t.Teardown()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Debug("tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns the latest published snapshot.
func (t *Tracker) View() View {
	return *t.view.Load()
}

// StartInitialLoad fetches the first page and starts polling on success.
func (t *Tracker) StartInitialLoad() {
	t.post(t.initialLoad)
}

// LoadNextPage appends the next page to the collection.
func (t *Tracker) LoadNextPage() {
	t.post(t.loadNextPage)
}

// SetSearchQuery changes the filter after the debounce delay.
func (t *Tracker) SetSearchQuery(text string) {
	t.post(func() { t.setSearchQuery(text) })
}

// SetVisible suspends polling while the view is hidden and resumes it when
// it becomes visible again.
func (t *Tracker) SetVisible(visible bool) {
	t.post(func() { t.setVisible(visible) })
}

// Retry discards the collection and backoff state and reloads page one.
func (t *Tracker) Retry() {
	t.post(t.retry)
}

// Refresh polls now unless a poll is already in flight.
func (t *Tracker) Refresh() {
	t.post(t.poll)
}

func (t *Tracker) run() {
	defer t.wg.Done()
	defer close(t.done)

	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return
		case fn := <-t.events:
			if t.ctx.Err() != nil {
				t.shutdown()
				return
			}
			fn()
		}
	}
}

func (t *Tracker) shutdown() {
	if t.searchTimer != nil {
		t.searchTimer.Stop()
		t.searchTimer = nil
	}
}

// post queues fn for the loop. It reports false once the loop has exited.
func (t *Tracker) post(fn func()) bool {
	select {
	case t.events <- fn:
		return true
	case <-t.done:
		return false
	}
}

// flush blocks until every event queued before it has run.
func (t *Tracker) flush() {
	ch := make(chan struct{})
	if t.post(func() { close(ch) }) {
		select {
		case <-ch:
		case <-t.done:
		}
	}
}

func (t *Tracker) onTimer() {
	t.post(t.poll)
}

// fetchPage fetches one page off the loop and posts done back to it.
func (t *Tracker) fetchPage(page int, done func([]model.Record, error)) {
	ctx := t.ctx
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		records, err := t.source.MarketsPage(ctx, page, t.cfg.PerPage)
		if err == nil {
			t.deliver(records)
		}
		t.post(func() { done(records, err) })
	}()
}

func (t *Tracker) deliver(records []model.Record) {
	if len(records) == 0 || len(t.sinks) == 0 {
		return
	}
	at := t.now()
	for _, s := range t.sinks {
		s.Consume(records, at)
	}
}

// publish stores a new snapshot and notifies the listener of the filtered
// collection.
func (t *Tracker) publish() {
	v := t.snapshot()
	t.listener.CollectionUpdated(v.Filtered)
	if t.sizeObserver != nil {
		t.sizeObserver(len(v.Collection))
	}
	t.updateLoadMore(v)
}

func (t *Tracker) snapshot() *View {
	v := &View{
		Collection:  t.canonical,
		Filtered:    market.Filter(t.canonical, t.query),
		Query:       t.query,
		Page:        t.page,
		HasMore:     t.hasMore,
		Loading:     t.loading,
		Loaded:      t.loaded,
		RateLimited: t.rateLimited,
		RetryIn:     t.retryIn,
		LastUpdated: t.lastUpdated,
		Err:         t.lastErr,
	}
	t.view.Store(v)
	return v
}

func (t *Tracker) updateLoadMore(v *View) {
	shown := v.LoadMoreAvailable() && !v.Loading
	if shown != t.loadMoreShown {
		t.loadMoreShown = shown
		t.listener.LoadMoreAvailable(shown)
	}
}

func (t *Tracker) setLoading(loading bool) {
	if t.loading == loading {
		return
	}
	t.loading = loading
	t.listener.LoadingStateChanged(loading)
	t.updateLoadMore(t.snapshot())
}

func (t *Tracker) setRateLimited(retryIn time.Duration) {
	t.rateLimited = true
	t.retryIn = retryIn
	t.listener.RateLimited(retryIn)
	t.snapshot()
}

func (t *Tracker) clearRateLimited() {
	if !t.rateLimited {
		return
	}
	t.rateLimited = false
	t.retryIn = 0
	t.listener.RateLimitCleared()
	t.snapshot()
}

func (t *Tracker) touch() {
	t.lastUpdated = t.now()
	t.lastErr = ""
	t.listener.LastUpdated(t.lastUpdated)
}
