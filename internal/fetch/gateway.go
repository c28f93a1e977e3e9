package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptotracker/marketview/internal/metrics"
)

// Gateway issues upstream requests with per-key deduplication.
type Gateway struct {
	transport Transport
	registry  *Registry
	limiter   Limiter
	logger    *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLimiter paces requests through l before they are issued.
func WithLimiter(l Limiter) GatewayOption {
	return func(g *Gateway) {
		g.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a gateway with its own request registry.
func NewGateway(transport Transport, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		transport: transport,
		registry:  NewRegistry(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Fetch issues req under the logical key and returns the response body.
// Any request already in flight under key is cancelled first. The returned
// error, if any, is always a *Error.
func (g *Gateway) Fetch(ctx context.Context, key string, req Request) ([]byte, error) {
	reqCtx, release, superseded := g.registry.acquire(ctx, key)
	if superseded {
		g.logger.Debug("superseded in-flight request", "key", key)
	}

	body, err := g.do(reqCtx, key, req)

	if !release() && err == nil {
		// Completed, but a newer request under the same key already owns
		// the slot: the caller must not see this as a success.
		body, err = nil, &Error{Kind: KindCancelled, Key: key, Message: errSuperseded.Error(), Err: errSuperseded}
	}

	g.observe(key, err)
	return body, err
}

// CancelAll cancels every request in flight.
func (g *Gateway) CancelAll() {
	if n := g.registry.CancelAll(); n > 0 {
		g.logger.Debug("cancelled in-flight requests", "count", n)
	}
}

// InFlight returns the number of requests currently registered.
func (g *Gateway) InFlight() int {
	return g.registry.Len()
}

func (g *Gateway) do(ctx context.Context, key string, req Request) ([]byte, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.contextError(ctx, key, err)
		}
	}

	start := time.Now()
	resp, err := g.transport.Issue(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, g.contextError(ctx, key, err)
		}
		return nil, Failed(key, err)
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case resp.Status == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindRateLimited,
			Key:        key,
			StatusCode: resp.Status,
			Message:    "rate limit exceeded",
		}
	case resp.Status >= 400:
		return nil, &Error{
			Kind:       KindFailed,
			Key:        key,
			StatusCode: resp.Status,
			Message:    http.StatusText(resp.Status),
		}
	}

	return resp.Body, nil
}

// contextError classifies a failure caused by ctx ending. A deadline is a
// failure; anything else (supersede, CancelAll, caller teardown) is a
// cancellation.
func (g *Gateway) contextError(ctx context.Context, key string, err error) *Error {
	cause := context.Cause(ctx)
	if errors.Is(cause, context.DeadlineExceeded) {
		return &Error{Kind: KindFailed, Key: key, Message: "request timed out", Err: err}
	}
	if cause == nil {
		cause = err
	}
	return &Error{Kind: KindCancelled, Key: key, Message: cause.Error(), Err: cause}
}

func (g *Gateway) observe(key string, err error) {
	if err == nil {
		metrics.FetchTotal.WithLabelValues("ok").Inc()
		return
	}

	kind := KindOf(err)
	metrics.FetchTotal.WithLabelValues(kind.String()).Inc()

	switch kind {
	case KindCancelled:
		g.logger.Debug("request cancelled", "key", key)
	case KindRateLimited:
		g.logger.Warn("upstream rate limited", "key", key)
	default:
		g.logger.Warn("request failed", "key", key, "err", err)
	}
}
