package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cryptotracker/marketview/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport, err := fetch.NewHTTPTransport(5 * time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	return NewClient(server.URL, fetch.NewGateway(transport), opts...)
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	gw := fetch.NewGateway(fetch.TransportFunc(nil))

	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", gw)

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.keyHeader != DefaultKeyHeader {
			t.Errorf("keyHeader = %q, want %q", c.keyHeader, DefaultKeyHeader)
		}
		if c.vsCurrency != "usd" {
			t.Errorf("vsCurrency = %q, want %q", c.vsCurrency, "usd")
		}
		if c.order != DefaultOrder {
			t.Errorf("order = %q, want %q", c.order, DefaultOrder)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with api key and header", func(t *testing.T) {
		c := NewClient("https://api.example.com", gw, WithAPIKey("secret", "x-cg-pro-api-key"))
		if c.apiKey != "secret" {
			t.Errorf("apiKey = %q, want %q", c.apiKey, "secret")
		}
		if c.keyHeader != "x-cg-pro-api-key" {
			t.Errorf("keyHeader = %q, want %q", c.keyHeader, "x-cg-pro-api-key")
		}
	})

	t.Run("empty options keep defaults", func(t *testing.T) {
		c := NewClient("https://api.example.com", gw, WithAPIKey("k", ""), WithVSCurrency(""), WithOrder(""))
		if c.keyHeader != DefaultKeyHeader {
			t.Errorf("keyHeader = %q, want default", c.keyHeader)
		}
		if c.vsCurrency != DefaultVSCurrency {
			t.Errorf("vsCurrency = %q, want default", c.vsCurrency)
		}
		if c.order != DefaultOrder {
			t.Errorf("order = %q, want default", c.order)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", gw, WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})
}

func TestMarketsPage(t *testing.T) {
	t.Run("query and decoding", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/coins/markets" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/coins/markets")
			}
			q := r.URL.Query()
			want := map[string]string{
				"vs_currency": "eur",
				"order":       "market_cap_desc",
				"per_page":    "50",
				"page":        "2",
				"sparkline":   "false",
			}
			for k, v := range want {
				if q.Get(k) != v {
					t.Errorf("%s = %q, want %q", k, q.Get(k), v)
				}
			}
			if r.Header.Get(DefaultKeyHeader) != "demo-key" {
				t.Errorf("api key header = %q, want %q", r.Header.Get(DefaultKeyHeader), "demo-key")
			}
			if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "marketview/") {
				t.Errorf("user agent = %q", ua)
			}
			w.Write([]byte(`[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_cap_rank":1,"current_price":64000.12,"price_change_percentage_24h":-1.5},
				{"id":"newcoin","symbol":"new","name":"New Coin","market_cap_rank":null,"current_price":null}
			]`))
		}, WithAPIKey("demo-key", ""), WithVSCurrency("eur"))

		records, err := c.MarketsPage(context.Background(), 2, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		if records[0].ID != "bitcoin" || records[0].Rank != 1 {
			t.Errorf("records[0] = %+v", records[0])
		}
		if records[0].CurrentPrice.Decimal.String() != "64000.12" {
			t.Errorf("CurrentPrice = %s, want 64000.12", records[0].CurrentPrice.Decimal)
		}
		if records[1].HasRank() {
			t.Errorf("records[1].Rank = %d, want unranked", records[1].Rank)
		}
		if records[1].CurrentPrice.Valid {
			t.Error("records[1].CurrentPrice should be null")
		}
	})

	t.Run("no api key header when unset", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(DefaultKeyHeader) != "" {
				t.Errorf("api key header should be empty, got %q", r.Header.Get(DefaultKeyHeader))
			}
			w.Write([]byte(`[]`))
		})

		records, err := c.MarketsPage(context.Background(), 1, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})

	t.Run("429 is rate limited", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := c.MarketsPage(context.Background(), 1, 50)
		if !fetch.IsRateLimited(err) {
			t.Fatalf("error = %v, want rate limited", err)
		}
		if !strings.Contains(err.Error(), "get markets page 1") {
			t.Errorf("error should name the page, got %v", err)
		}
	})

	t.Run("5xx is failed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := c.MarketsPage(context.Background(), 1, 50)
		if fetch.KindOf(err) != fetch.KindFailed {
			t.Fatalf("KindOf(err) = %s, want failed", fetch.KindOf(err))
		}
	})

	t.Run("malformed body is failed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"an array"`))
		})

		_, err := c.MarketsPage(context.Background(), 1, 50)
		if fetch.KindOf(err) != fetch.KindFailed {
			t.Fatalf("KindOf(err) = %s, want failed", fetch.KindOf(err))
		}
		if !strings.Contains(err.Error(), "unmarshal response") {
			t.Errorf("error should mention unmarshal, got %v", err)
		}
	})
}

func TestCoin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/coins/bitcoin")
		}
		if r.URL.Query().Get("tickers") != "false" {
			t.Errorf("tickers = %q, want false", r.URL.Query().Get("tickers"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":              "bitcoin",
			"symbol":          "btc",
			"name":            "Bitcoin",
			"market_cap_rank": 1,
			"image":           map[string]string{"small": "s.png", "large": "l.png"},
			"market_data": map[string]any{
				"current_price":               map[string]float64{"usd": 64000, "inr": 5300000},
				"market_cap":                  map[string]float64{"usd": 1.2e12},
				"high_24h":                    map[string]float64{"usd": 65000},
				"price_change_percentage_24h": 2.5,
			},
			"description": map[string]string{"en": "<p>Bitcoin is <a href=\"#\">digital</a> money.</p>"},
			"links":       map[string]any{"homepage": []string{"https://bitcoin.org", ""}},
		})
	})

	detail, err := c.Coin(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "Bitcoin" {
		t.Errorf("Name = %q, want Bitcoin", detail.Name)
	}
	if detail.Image != "l.png" {
		t.Errorf("Image = %q, want l.png", detail.Image)
	}
	if detail.CurrentPrice.Decimal.String() != "64000" {
		t.Errorf("CurrentPrice = %s, want 64000 (usd)", detail.CurrentPrice.Decimal)
	}
	if detail.Low24h.Valid {
		t.Error("Low24h should be null when missing")
	}
	if detail.Description != "Bitcoin is digital money." {
		t.Errorf("Description = %q", detail.Description)
	}
	if detail.Homepage != "https://bitcoin.org" {
		t.Errorf("Homepage = %q, want https://bitcoin.org", detail.Homepage)
	}
}

func TestCoin_SecondRequestSupersedesFirst(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		if r.URL.Path == "/coins/slow" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		w.Write([]byte(`{"id":"` + strings.TrimPrefix(r.URL.Path, "/coins/") + `"}`))
	})
	defer close(release)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Coin(context.Background(), "slow")
		errs <- err
	}()
	<-started

	detail, err := c.Coin(context.Background(), "fast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.ID != "fast" {
		t.Errorf("ID = %q, want fast", detail.ID)
	}

	select {
	case err := <-errs:
		if !fetch.IsCancelled(err) {
			t.Errorf("first request error = %v, want cancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request was not cancelled")
	}
}
