package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brandbond/backend/internal/realtime"
	"github.com/gorilla/websocket"
)

func (s *testStack) dialStream(t *testing.T, accessToken string) *websocket.Conn {
	t.Helper()
	endpoint := strings.Replace(s.server.URL, "http", "ws", 1) + "/api/stream?access_token=" + accessToken
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		t.Fatalf("failed to dial change stream: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStreamDeliversAttendanceChanges(t *testing.T) {
	stack := newTestStack(t)
	alice := stack.register(t, "alice@example.com", "Seattle")

	created := stack.request(t, http.MethodPost, "/api/events", alice.AccessToken, map[string]interface{}{
		"title":    "Vinyl Night",
		"location": "Seattle",
	})
	if created.Status != http.StatusOK {
		t.Fatalf("event creation failed with status %d: %s", created.Status, created.Error)
	}
	var createdPayload struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(created.Data, &createdPayload); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}

	conn := stack.dialStream(t, alice.AccessToken)

	attend := stack.request(t, http.MethodPost, "/api/events/"+createdPayload.EventID+"/attend", alice.AccessToken, map[string]string{"status": "going"})
	if attend.Status != http.StatusOK {
		t.Fatalf("attend failed with status %d: %s", attend.Status, attend.Error)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read change frame: %v", err)
	}
	var change realtime.Change
	if err := json.Unmarshal(frame, &change); err != nil {
		t.Fatalf("malformed change frame %q: %v", frame, err)
	}
	if change.Table != realtime.TableEventAttendees {
		t.Fatalf("unexpected change table %q", change.Table)
	}
	if change.UserID != alice.UserID {
		t.Fatalf("expected the change scoped to the subscriber, got %q", change.UserID)
	}
	if len(change.RowIDs) != 1 || change.RowIDs[0] != createdPayload.EventID {
		t.Fatalf("unexpected row ids %v", change.RowIDs)
	}
}

func TestStreamIsolatesUsers(t *testing.T) {
	stack := newTestStack(t)
	alice := stack.register(t, "alice@example.com", "Seattle")
	bob := stack.register(t, "bob@example.com", "Seattle")

	created := stack.request(t, http.MethodPost, "/api/events", alice.AccessToken, map[string]interface{}{
		"title":    "Vinyl Night",
		"location": "Seattle",
	})
	var createdPayload struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(created.Data, &createdPayload); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}

	bobConn := stack.dialStream(t, bob.AccessToken)

	attend := stack.request(t, http.MethodPost, "/api/events/"+createdPayload.EventID+"/attend", alice.AccessToken, map[string]string{"status": "going"})
	if attend.Status != http.StatusOK {
		t.Fatalf("attend failed with status %d: %s", attend.Status, attend.Error)
	}

	_ = bobConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, frame, err := bobConn.ReadMessage(); err == nil {
		t.Fatalf("expected no frame for another user's change, got %q", frame)
	}
}

func TestStreamRejectsMissingToken(t *testing.T) {
	stack := newTestStack(t)
	endpoint := strings.Replace(stack.server.URL, "http", "ws", 1) + "/api/stream"
	_, response, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err == nil {
		t.Fatalf("expected the handshake rejected without a token")
	}
	if response == nil || response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", response)
	}
}
