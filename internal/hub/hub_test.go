package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// stubSource serves a fixed first page and counts cancellations.
type stubSource struct {
	records   []model.Record
	cancelled atomic.Int32
}

func (s *stubSource) MarketsPage(ctx context.Context, page, perPage int) ([]model.Record, error) {
	if page > 1 {
		return nil, nil
	}
	return s.records, nil
}

func (s *stubSource) CancelAll() {
	s.cancelled.Add(1)
}

func testRecords() []model.Record {
	return []model.Record{
		{ID: "bitcoin", Rank: 1, Symbol: "btc", Name: "Bitcoin"},
		{ID: "ethereum", Rank: 2, Symbol: "eth", Name: "Ethereum"},
		{ID: "tether", Rank: 3, Symbol: "usdt", Name: "Tether"},
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// sourceLog records the sources handed out by the hub.
type sourceLog struct {
	mu      sync.Mutex
	sources []*stubSource
}

func (l *sourceLog) add(s *stubSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, s)
}

func (l *sourceLog) all() []*stubSource {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*stubSource(nil), l.sources...)
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server, *sourceLog) {
	t.Helper()

	sources := &sourceLog{}
	cfg := DefaultConfig()
	cfg.PingInterval = time.Second
	tcfg := tracker.DefaultConfig()
	tcfg.SearchDebounce = 10 * time.Millisecond

	h := New(cfg, tcfg, func() tracker.Source {
		s := &stubSource{records: testRecords()}
		sources.add(s)
		return s
	}, WithCurrency("eur"))

	server := httptest.NewServer(h)
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
	return h, server, sources
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(rawMessage) bool) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg rawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(rawMessage) bool {
	return func(m rawMessage) bool { return m.Type == typ }
}

func collectionOf(n int) func(rawMessage) bool {
	return func(m rawMessage) bool {
		if m.Type != TypeCollection {
			return false
		}
		var data CollectionData
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return false
		}
		return data.Count == n
	}
}

func TestHub_HelloAndInitialCollection(t *testing.T) {
	_, server, _ := newTestHub(t)
	conn := dial(t, server)

	msg := readUntil(t, conn, ofType(TypeHello))
	var hello HelloData
	if err := json.Unmarshal(msg.Data, &hello); err != nil {
		t.Fatalf("unmarshal hello: %v", err)
	}
	if hello.SessionID == "" {
		t.Error("expected session id")
	}
	if hello.Currency != "eur" {
		t.Errorf("expected currency eur, got %q", hello.Currency)
	}

	msg = readUntil(t, conn, collectionOf(3))
	var data CollectionData
	json.Unmarshal(msg.Data, &data)
	if data.Records[0].ID != "bitcoin" {
		t.Errorf("expected bitcoin first, got %s", data.Records[0].ID)
	}
}

func TestHub_SearchCommand(t *testing.T) {
	_, server, _ := newTestHub(t)
	conn := dial(t, server)
	readUntil(t, conn, collectionOf(3))

	if err := conn.WriteJSON(Command{Type: CmdSearch, Query: "BIT"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readUntil(t, conn, collectionOf(1))
	var data CollectionData
	json.Unmarshal(msg.Data, &data)
	if data.Records[0].ID != "bitcoin" {
		t.Errorf("expected bitcoin, got %s", data.Records[0].ID)
	}
}

func TestHub_InvalidCommand(t *testing.T) {
	_, server, _ := newTestHub(t)
	conn := dial(t, server)
	readUntil(t, conn, collectionOf(3))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"launch"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readUntil(t, conn, ofType(TypeError))
	var data ErrorData
	json.Unmarshal(msg.Data, &data)
	if data.Kind != "invalid_command" {
		t.Errorf("expected invalid_command, got %q", data.Kind)
	}
}

func TestHub_SessionsAreIndependent(t *testing.T) {
	h, server, sources := newTestHub(t)
	a := dial(t, server)
	b := dial(t, server)
	readUntil(t, a, collectionOf(3))
	readUntil(t, b, collectionOf(3))

	if h.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", h.Len())
	}

	a.WriteJSON(Command{Type: CmdSearch, Query: "tether"})
	readUntil(t, a, collectionOf(1))

	// b still sees everything after a refresh.
	b.WriteJSON(Command{Type: CmdRefresh})
	readUntil(t, b, collectionOf(3))

	if n := len(sources.all()); n != 2 {
		t.Errorf("expected a source per session, got %d", n)
	}
}

func TestHub_CloseTearsDownTracker(t *testing.T) {
	h, server, sources := newTestHub(t)
	conn := dial(t, server)
	readUntil(t, conn, collectionOf(3))

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for h.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed, %d live", h.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if sources.all()[0].cancelled.Load() == 0 {
		t.Error("expected source to be cancelled on close")
	}
}

func TestHub_Shutdown(t *testing.T) {
	h, server, _ := newTestHub(t)
	conn := dial(t, server)
	readUntil(t, conn, collectionOf(3))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected no sessions, got %d", h.Len())
	}

	// New connections are refused once shut down.
	late := dial(t, server)
	late.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late connection to be closed")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"search", `{"type":"search","query":"btc"}`, CmdSearch, nil},
		{"load more", `{"type":"load_more"}`, CmdLoadMore, nil},
		{"visibility", `{"type":"visibility","visible":false}`, CmdVisibility, nil},
		{"retry", `{"type":"retry"}`, CmdRetry, nil},
		{"refresh", `{"type":"refresh"}`, CmdRefresh, nil},
		{"unknown", `{"type":"launch"}`, "", ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if cmd.Type != tt.want {
				t.Errorf("expected type %q, got %q", tt.want, cmd.Type)
			}
		})
	}

	if _, err := ParseCommand([]byte(`{"type":"visibility"}`)); err == nil {
		t.Error("expected error for visibility without flag")
	}
	if _, err := ParseCommand([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed json")
	}
}

func TestSession_CollectionSurvivesFullBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	s := newSession(cfg, nil, slog.New(slog.DiscardHandler))

	s.LoadingStateChanged(true)
	s.CollectionUpdated(testRecords()[:1])
	s.CollectionUpdated(testRecords())
	s.LoadingStateChanged(false)

	if len(s.send) != 1 {
		t.Fatalf("len(send) = %d, want 1", len(s.send))
	}
	select {
	case <-s.ready:
	default:
		t.Fatal("collection not signalled")
	}

	var msg struct {
		Type string         `json:"type"`
		Data CollectionData `json:"data"`
	}
	if err := json.Unmarshal(s.takeCollection(), &msg); err != nil {
		t.Fatalf("decode collection: %v", err)
	}
	if msg.Type != TypeCollection || msg.Data.Count != 3 {
		t.Errorf("got %s with %d records, want newest collection of 3", msg.Type, msg.Data.Count)
	}
	if s.takeCollection() != nil {
		t.Error("collection delivered twice")
	}
}
