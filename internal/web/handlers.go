package web

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/history"
	"github.com/cryptotracker/marketview/internal/market"
	"github.com/cryptotracker/marketview/internal/model"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type healthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := healthResponse{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["history_db"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["history_db"] = "connected"
		}
	}

	if s.recorder != nil {
		v := s.recorder.View()
		health.Components["recorder"] = map[string]any{
			"records":      len(v.Collection),
			"loaded":       v.Loaded,
			"rate_limited": v.RateLimited,
		}
		if health.Status == "healthy" && (!v.Loaded || v.RateLimited) {
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

type marketsResponse struct {
	Records        []model.Record `json:"records"`
	Count          int            `json:"count"`
	Total          int            `json:"total"`
	Loaded         bool           `json:"loaded"`
	RateLimited    bool           `json:"rate_limited"`
	RetryInSeconds int            `json:"retry_in_seconds,omitempty"`
	LastUpdated    *time.Time     `json:"last_updated,omitempty"`
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeError(w, http.StatusServiceUnavailable, "market recorder not running")
		return
	}

	v := s.recorder.View()
	records := market.Filter(v.Collection, r.URL.Query().Get("q"))

	resp := marketsResponse{
		Records:     records,
		Count:       len(records),
		Total:       len(v.Collection),
		Loaded:      v.Loaded,
		RateLimited: v.RateLimited,
	}
	if v.RateLimited {
		resp.RetryInSeconds = int(math.Ceil(v.RetryIn.Seconds()))
	}
	if !v.LastUpdated.IsZero() {
		resp.LastUpdated = &v.LastUpdated
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	if s.coins == nil {
		s.writeError(w, http.StatusNotFound, "coin detail disabled")
		return
	}

	id := r.PathValue("id")
	detail, err := s.coins.Coin(r.Context(), id)
	if err != nil {
		s.writeError(w, statusForFetch(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// statusForFetch maps a fetch failure onto an HTTP status.
func statusForFetch(err error) int {
	switch fetch.KindOf(err) {
	case fetch.KindRateLimited:
		return http.StatusTooManyRequests
	case fetch.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		s.writeError(w, http.StatusNotFound, "quote cache disabled")
		return
	}

	id := r.PathValue("id")
	quote, err := s.quotes.Get(r.Context(), id)
	if err != nil {
		s.logger.Warn("quote cache read failed", "id", id, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "quote cache unavailable")
		return
	}
	if quote == nil {
		s.writeError(w, http.StatusNotFound, "no quote for "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

type tickResponse struct {
	ObservedAt time.Time           `json:"observed_at"`
	Rank       int                 `json:"rank,omitempty"`
	Price      decimal.NullDecimal `json:"price"`
	MarketCap  decimal.NullDecimal `json:"market_cap"`
	Volume     decimal.NullDecimal `json:"volume"`
	Change24h  decimal.NullDecimal `json:"change_24h"`
}

type historyResponse struct {
	CoinID string         `json:"coin_id"`
	Ticks  []tickResponse `json:"ticks"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	ticks, err := history.Recent(r.Context(), s.history, id, limit)
	if err != nil {
		s.logger.Error("history query failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	resp := historyResponse{CoinID: id, Ticks: make([]tickResponse, 0, len(ticks))}
	for _, t := range ticks {
		resp.Ticks = append(resp.Ticks, tickResponse{
			ObservedAt: t.ObservedAt,
			Rank:       t.Rank,
			Price:      t.Price,
			MarketCap:  t.MarketCap,
			Volume:     t.Volume,
			Change24h:  t.Change24h,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
