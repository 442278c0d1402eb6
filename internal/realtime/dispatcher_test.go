package realtime

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "user-1")
	defer cleanup()

	dispatcher.Publish(Change{
		Table:     TableLocalEvents,
		UserID:    "user-1",
		RowIDs:    []string{"event-a", "event-b"},
		Timestamp: time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.Table != TableLocalEvents {
			t.Fatalf("expected table %s, got %s", TableLocalEvents, received.Table)
		}
		if len(received.RowIDs) != 2 {
			t.Fatalf("expected 2 row ids, got %d", len(received.RowIDs))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected change notification within deadline")
	}
}

func TestDispatcherIsolatedByUser(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherCtx, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	userStream, cleanup := dispatcher.Subscribe(ctx, "user-2")
	defer cleanup()

	otherStream, otherCleanup := dispatcher.Subscribe(otherCtx, "user-3")
	defer otherCleanup()

	dispatcher.Publish(Change{
		Table:  TableMessages,
		UserID: "user-3",
		RowIDs: []string{"msg-1"},
	})

	select {
	case <-userStream:
		t.Fatal("did not expect change notification for unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case change := <-otherStream:
		if change.UserID != "user-3" {
			t.Fatalf("expected user-3, received %s", change.UserID)
		}
		if change.Timestamp.IsZero() {
			t.Fatal("expected publish to stamp the change")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected change notification for subscribed user")
	}
}

func TestDispatcherEmptyUserYieldsClosedStream(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background(), "")
	defer cleanup()

	if _, open := <-stream; open {
		t.Fatal("expected closed stream for empty user id")
	}
}

func TestDispatcherCancelIsIdempotent(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, cleanup := dispatcher.Subscribe(ctx, "user-4")
	cleanup()
	cleanup()

	dispatcher.Publish(Change{Table: TableProfiles, UserID: "user-4"})
}

func TestDispatcherPublishAllNotifiesEachUser(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, firstCleanup := dispatcher.Subscribe(ctx, "user-5")
	defer firstCleanup()
	second, secondCleanup := dispatcher.Subscribe(ctx, "user-6")
	defer secondCleanup()

	dispatcher.PublishAll(TableConversations, []string{"user-5", "user-6"}, []string{"conv-1"})

	for _, stream := range []<-chan Change{first, second} {
		select {
		case change := <-stream:
			if change.Table != TableConversations {
				t.Fatalf("expected conversations change, got %s", change.Table)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("expected change notification for each user")
		}
	}
}
