package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cryptotracker/marketview/internal/model"
)

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestKey(t *testing.T) {
	if got := Key("bitcoin"); got != "latest:bitcoin" {
		t.Errorf("Key() = %q, want %q", got, "latest:bitcoin")
	}
}

func TestQuoteEncoding(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := Quote{
		Record: model.Record{
			ID:           "bitcoin",
			Rank:         1,
			Symbol:       "btc",
			CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("64000.5")),
		},
		ObservedAt: at,
	}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	// Record fields are flattened next to observed_at.
	if fields["id"] != "bitcoin" {
		t.Errorf("id = %v, want bitcoin", fields["id"])
	}
	if fields["observed_at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("observed_at = %v", fields["observed_at"])
	}
}

func TestConsume_UnreachableCountsError(t *testing.T) {
	q := NewWithClient(unreachable(t), time.Minute, nil)

	q.Consume([]model.Record{{ID: "bitcoin"}}, time.Now())
	if q.Errors() != 1 {
		t.Errorf("Errors() = %d, want 1", q.Errors())
	}

	q.Consume(nil, time.Now())
	if q.Errors() != 1 {
		t.Errorf("empty batch should not write, Errors() = %d", q.Errors())
	}
}

func TestGet_UnreachableReturnsError(t *testing.T) {
	q := NewWithClient(unreachable(t), time.Minute, nil)

	quote, err := q.Get(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("Get() error = nil, want connection error")
	}
	if quote != nil {
		t.Errorf("Get() quote = %+v, want nil", quote)
	}
}

func TestNew_UnreachableFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := New(ctx, Config{Addr: "127.0.0.1:1"}, nil); err == nil {
		t.Error("New() error = nil for unreachable redis")
	}
}
