package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryptotracker/marketview/internal/metrics"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// Config holds session settings.
type Config struct {
	PingInterval   time.Duration // Interval between server pings (default: 15s)
	ReadTimeout    time.Duration // Max silence before a session is dropped (default: 60s)
	WriteTimeout   time.Duration // Per-write deadline (default: 10s)
	SendBuffer     int           // Queued outbound messages per session (default: 64)
	MaxMessageSize int64         // Max inbound message size (default: 4096)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:   15 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 4096,
	}
}

// SourceFactory returns a fresh source for one session. Each session must
// get its own source so cancelling one view never touches another.
type SourceFactory func() tracker.Source

// Hub accepts websocket connections and runs a session for each.
type Hub struct {
	cfg        Config
	trackerCfg tracker.Config
	newSource  SourceFactory
	opts       []tracker.Option
	hello      HelloData
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithTrackerOptions adds options applied to every session's tracker.
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(h *Hub) {
		h.opts = append(h.opts, opts...)
	}
}

// WithCurrency sets the quote currency announced in the hello message.
func WithCurrency(currency string) Option {
	return func(h *Hub) {
		h.hello.Currency = currency
	}
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(f func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = f
	}
}

// New creates a Hub.
func New(cfg Config, trackerCfg tracker.Config, newSource SourceFactory, opts ...Option) *Hub {
	h := &Hub{
		cfg:        cfg,
		trackerCfg: trackerCfg,
		newSource:  newSource,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		sessions: make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// ServeHTTP upgrades the request and serves the session until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s := newSession(h.cfg, conn, h.logger)
	s.tracker = tracker.New(h.trackerCfg, h.newSource(), s,
		append([]tracker.Option{tracker.WithLogger(s.logger)}, h.opts...)...,
	)

	if !h.add(s) {
		s.close()
		return
	}
	defer h.remove(s)

	hello := h.hello
	hello.SessionID = s.id
	s.enqueue(Message{Type: TypeHello, Data: hello})

	s.logger.Info("session opened", "remote", r.RemoteAddr)
	s.run(h.ctx)
	s.logger.Info("session closed")
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session and waits for them to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// add registers s. It reports false once the hub is shutting down.
func (h *Hub) add(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		return false
	}
	h.sessions[s.id] = s
	h.wg.Add(1)
	metrics.Sessions.Inc()
	return true
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	metrics.Sessions.Dec()
	h.wg.Done()
}
