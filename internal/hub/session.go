package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// Session is one websocket connection and the tracker behind it.
type Session struct {
	id      string
	cfg     Config
	conn    *websocket.Conn
	tracker *tracker.Tracker
	logger  *slog.Logger

	send chan []byte
	done chan struct{}

	// Only the newest collection is worth sending, so it bypasses send.
	latestMu sync.Mutex
	latest   []byte
	ready    chan struct{}

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
}

func newSession(cfg Config, conn *websocket.Conn, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		conn:   conn,
		logger: logger.With("session", id),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		ready:  make(chan struct{}, 1),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// run serves the session until the socket closes or ctx is done.
func (s *Session) run(ctx context.Context) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	s.tracker.Start(ctx)
	s.tracker.StartInitialLoad()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx)
	}()

	s.readLoop()
	s.close()
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracker.Stop(stopCtx); err != nil {
		s.logger.Warn("tracker stop timed out", "err", err)
	}
}

// close ends the session. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()

		s.conn.Close()
	})
}

// readLoop turns inbound commands into tracker operations.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read failed", "error", err)
				}
			}
			return
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			s.logger.Debug("invalid command", "error", err)
			s.enqueue(Message{Type: TypeError, Data: ErrorData{Kind: "invalid_command", Message: err.Error()}})
			continue
		}
		s.dispatch(cmd)
	}
}

func (s *Session) dispatch(cmd Command) {
	switch cmd.Type {
	case CmdSearch:
		s.tracker.SetSearchQuery(cmd.Query)
	case CmdLoadMore:
		s.tracker.LoadNextPage()
	case CmdVisibility:
		s.tracker.SetVisible(*cmd.Visible)
	case CmdRetry:
		s.tracker.Retry()
	case CmdRefresh:
		s.tracker.Refresh()
	}
}

// writeLoop writes queued messages and keeps the connection alive.
func (s *Session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.close()
			return
		case data := <-s.send:
			if err := s.write(websocket.TextMessage, data); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.close()
				return
			}
		case <-s.ready:
			data := s.takeCollection()
			if data == nil {
				continue
			}
			if err := s.write(websocket.TextMessage, data); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				s.close()
				return
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(messageType, data)
}

// enqueue queues msg for the write loop without blocking.
func (s *Session) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}

	select {
	case <-s.done:
	case s.send <- data:
	default:
		s.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

// offerCollection replaces any unsent collection with msg. It never drops
// the newest one.
func (s *Session) offerCollection(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}

	s.latestMu.Lock()
	replaced := s.latest != nil
	s.latest = data
	s.latestMu.Unlock()

	if replaced {
		s.logger.Debug("collection superseded before send")
	}
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Session) takeCollection() []byte {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	data := s.latest
	s.latest = nil
	return data
}

// The methods below make Session a tracker.Listener.

func (s *Session) CollectionUpdated(records []model.Record) {
	s.offerCollection(Message{Type: TypeCollection, Data: CollectionData{Records: records, Count: len(records)}})
}

func (s *Session) LoadingStateChanged(loading bool) {
	s.enqueue(Message{Type: TypeLoading, Data: LoadingData{Loading: loading}})
}

func (s *Session) Error(kind fetch.Kind, message string) {
	s.enqueue(Message{Type: TypeError, Data: ErrorData{Kind: kind.String(), Message: message}})
}

func (s *Session) RateLimited(retryIn time.Duration) {
	s.enqueue(Message{Type: TypeRateLimited, Data: RateLimitedData{RetryInSeconds: int(math.Ceil(retryIn.Seconds()))}})
}

func (s *Session) RateLimitCleared() {
	s.enqueue(Message{Type: TypeRateLimitCleared})
}

func (s *Session) LastUpdated(at time.Time) {
	s.enqueue(Message{Type: TypeLastUpdated, Data: LastUpdatedData{At: at}})
}

func (s *Session) LoadMoreAvailable(available bool) {
	s.enqueue(Message{Type: TypeLoadMore, Data: LoadMoreData{Available: available}})
}
