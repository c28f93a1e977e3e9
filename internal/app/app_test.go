package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryptotracker/marketview/internal/config"
	"github.com/cryptotracker/marketview/internal/fetch"
)

func TestTrackerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Markets.PerPage = 100
	cfg.Poller.BaseInterval = time.Minute

	tc := TrackerConfig(cfg)
	if tc.PerPage != 100 {
		t.Errorf("expected per page 100, got %d", tc.PerPage)
	}
	if tc.Poll.BaseInterval != time.Minute {
		t.Errorf("expected base interval 1m, got %v", tc.Poll.BaseInterval)
	}
	if tc.Poll.MaxInterval != config.DefaultMaxInterval {
		t.Errorf("expected max interval %v, got %v", config.DefaultMaxInterval, tc.Poll.MaxInterval)
	}
	if tc.SearchDebounce != config.DefaultSearchDebounce {
		t.Errorf("expected debounce %v, got %v", config.DefaultSearchDebounce, tc.SearchDebounce)
	}
}

func TestSources_ClientsAreIndependent(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.API.BaseURL = server.URL
	cfg.API.RateLimit.Burst = 10
	sources := NewSourcesWithTransport(cfg, fetch.NewHTTPTransportWithClient(server.Client()), nil)

	a, b := sources.Client(), sources.Client()
	errA := make(chan error, 1)
	go func() {
		_, err := a.MarketsPage(context.Background(), 1, 50)
		errA <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never reached the server")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Cancelling b must leave a's request alone.
	b.CancelAll()
	close(release)

	if err := <-errA; err != nil {
		t.Errorf("expected a to succeed, got %v", err)
	}
}
