package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptotracker/marketview/internal/cache"
	"github.com/cryptotracker/marketview/internal/history"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// Snapshotter returns the current view of a tracker.
type Snapshotter interface {
	View() tracker.View
}

// CoinFetcher loads a single coin's detail.
type CoinFetcher interface {
	Coin(ctx context.Context, id string) (*model.CoinDetail, error)
}

// QuoteReader reads cached quotes.
type QuoteReader interface {
	Get(ctx context.Context, id string) (*cache.Quote, error)
}

// Pinger checks a backing store. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the marketview HTTP server.
type Server struct {
	recorder Snapshotter
	coins    CoinFetcher
	quotes   QuoteReader
	history  history.Querier
	db       Pinger
	ws       http.Handler
	logger   *slog.Logger

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCoins enables /api/coins/{id}.
func WithCoins(c CoinFetcher) Option {
	return func(s *Server) {
		s.coins = c
	}
}

// WithQuotes enables /api/quotes/{id}.
func WithQuotes(q QuoteReader) Option {
	return func(s *Server) {
		s.quotes = q
	}
}

// WithHistory enables /api/history/{id}. When db also implements Pinger
// it is reported by /health.
func WithHistory(db history.Querier) Option {
	return func(s *Server) {
		s.history = db
		if p, ok := db.(Pinger); ok {
			s.db = p
		}
	}
}

// WithWebsocket mounts h on /ws.
func WithWebsocket(h http.Handler) Option {
	return func(s *Server) {
		s.ws = h
	}
}

// NewServer creates a Server reading market snapshots from recorder.
func NewServer(recorder Snapshotter, opts ...Option) *Server {
	s := &Server{
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/markets", s.handleMarkets)
	mux.HandleFunc("GET /api/coins/{id}", s.handleCoin)
	mux.HandleFunc("GET /api/quotes/{id}", s.handleQuote)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistory)
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}

	return mux
}

// Start listens on addr and serves until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting http server", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Hijacked websocket connections are
// not tracked here; close them through the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
