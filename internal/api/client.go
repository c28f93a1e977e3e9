package api

import (
	"log/slog"

	"github.com/cryptotracker/marketview/internal/fetch"
)

// Default request settings.
const (
	DefaultKeyHeader  = "x-cg-demo-api-key"
	DefaultVSCurrency = "usd"
	DefaultOrder      = "market_cap_desc"
)

// Client provides access to the markets REST API.
type Client struct {
	baseURL    string
	apiKey     string
	keyHeader  string
	vsCurrency string
	order      string
	gateway    *fetch.Gateway
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client that issues every request through gateway.
func NewClient(baseURL string, gateway *fetch.Gateway, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		keyHeader:  DefaultKeyHeader,
		vsCurrency: DefaultVSCurrency,
		order:      DefaultOrder,
		gateway:    gateway,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithAPIKey sends key in the given header. An empty header keeps the default.
func WithAPIKey(key, header string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
		if header != "" {
			c.keyHeader = header
		}
	}
}

// WithVSCurrency sets the quote currency (e.g., "usd", "eur").
func WithVSCurrency(currency string) ClientOption {
	return func(c *Client) {
		if currency != "" {
			c.vsCurrency = currency
		}
	}
}

// WithOrder sets the listing order.
func WithOrder(order string) ClientOption {
	return func(c *Client) {
		if order != "" {
			c.order = order
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// CancelAll cancels every request this client has in flight.
func (c *Client) CancelAll() {
	c.gateway.CancelAll()
}

// VSCurrency returns the quote currency used for prices.
func (c *Client) VSCurrency() string {
	return c.vsCurrency
}
