package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/brandbond/backend/internal/realtime"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notifier registers table-scoped change callbacks. The returned cancel is
// a no-op when the underlying connection has already dropped.
type Notifier interface {
	Subscribe(table string, fn func(realtime.Change)) func()
}

// ChangeStream consumes the API's websocket change feed and fans
// notifications out to table-scoped subscribers. Delivery is best effort:
// a dropped connection silently stops notifications, and consumers resync
// via their next snapshot reload.
type ChangeStream struct {
	mu     sync.Mutex
	subs   map[int64]streamSubscription
	nextID int64
	conn   *websocket.Conn
	closed bool
	logger *zap.Logger
}

type streamSubscription struct {
	table string
	fn    func(realtime.Change)
}

// DialChangeStream connects to the change feed using the session's token.
func DialChangeStream(ctx context.Context, baseURL, accessToken string, logger *zap.Logger) (*ChangeStream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint, err := streamEndpoint(baseURL, accessToken)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	stream := &ChangeStream{
		subs:   make(map[int64]streamSubscription),
		conn:   conn,
		logger: logger,
	}
	go stream.readLoop()
	return stream, nil
}

func streamEndpoint(baseURL, accessToken string) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", &TransportError{Message: err.Error()}
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", &TransportError{Message: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	parsed.Path = parsed.Path + "/api/stream"
	query := parsed.Query()
	query.Set("access_token", accessToken)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Subscribe registers fn for changes on the given table; an empty table
// matches every change. Safe to call concurrently.
func (s *ChangeStream) Subscribe(table string, fn func(realtime.Change)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = streamSubscription{table: table, fn: fn}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close tears the connection down; pending subscriptions stop firing.
func (s *ChangeStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *ChangeStream) readLoop() {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			// Connection drops are not surfaced; the snapshot contract
			// tolerates missed notifications.
			s.Close()
			return
		}
		var change realtime.Change
		if err := json.Unmarshal(frame, &change); err != nil {
			s.logger.Warn("malformed change frame", zap.Error(err))
			continue
		}
		s.dispatch(change)
	}
}

func (s *ChangeStream) dispatch(change realtime.Change) {
	s.mu.Lock()
	matched := make([]func(realtime.Change), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.table == "" || sub.table == change.Table {
			matched = append(matched, sub.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range matched {
		fn(change)
	}
}
