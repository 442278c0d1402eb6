package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brandbond/backend/internal/realtime"
)

type recordingNotifier struct {
	mu        sync.Mutex
	callbacks map[string]func(realtime.Change)
	cancelled int32
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{callbacks: make(map[string]func(realtime.Change))}
}

func (n *recordingNotifier) Subscribe(table string, fn func(realtime.Change)) func() {
	n.mu.Lock()
	n.callbacks[table] = fn
	n.mu.Unlock()
	return func() { atomic.AddInt32(&n.cancelled, 1) }
}

func (n *recordingNotifier) fire(table string) {
	n.mu.Lock()
	fn := n.callbacks[table]
	n.mu.Unlock()
	if fn != nil {
		fn(realtime.Change{Table: table})
	}
}

func awaitState(t *testing.T, states <-chan State[string], accept func(State[string]) bool) State[string] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-states:
			if accept(state) {
				return state
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state")
		}
	}
}

func TestWatcherFirstLoadOnlySetsLoading(t *testing.T) {
	states := make(chan State[string], 16)
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "alice",
		Load: func(context.Context) (string, error) {
			return "snapshot", nil
		},
		OnChange: func(state State[string]) { states <- state },
	})
	defer watcher.Close()

	first := <-states
	if !first.Loading {
		t.Fatalf("expected the initial state to be loading, got %+v", first)
	}
	settled := awaitState(t, states, func(s State[string]) bool { return !s.Loading })
	if settled.Data != "snapshot" || settled.Err != "" {
		t.Fatalf("unexpected settled state %+v", settled)
	}

	watcher.Refresh(context.Background())
	snapshot := watcher.Snapshot()
	if snapshot.Loading {
		t.Fatalf("reloads must not flip the loading flag")
	}
}

func TestWatcherFailedReloadKeepsLastGoodData(t *testing.T) {
	var calls int32
	states := make(chan State[string], 16)
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "alice",
		Load: func(context.Context) (string, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return "good", nil
			case 2:
				return "", errors.New("backend unreachable")
			default:
				return "recovered", nil
			}
		},
		OnChange: func(state State[string]) { states <- state },
	})
	defer watcher.Close()

	awaitState(t, states, func(s State[string]) bool { return !s.Loading && s.Data == "good" })

	watcher.Refresh(context.Background())
	failed := watcher.Snapshot()
	if failed.Data != "good" {
		t.Fatalf("failed reload must keep the last good data, got %+v", failed)
	}
	if failed.Err == "" {
		t.Fatalf("expected the failure surfaced in Err")
	}

	watcher.Refresh(context.Background())
	recovered := watcher.Snapshot()
	if recovered.Data != "recovered" || recovered.Err != "" {
		t.Fatalf("successful reload must clear Err, got %+v", recovered)
	}
}

func TestWatcherEmptyUserSettlesWithoutLoading(t *testing.T) {
	var calls int32
	states := make(chan State[string], 16)
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "",
		Load: func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "should not run", nil
		},
		Notifier: newRecordingNotifier(),
		Tables:   []string{realtime.TableLocalEvents},
		OnChange: func(state State[string]) { states <- state },
	})
	defer watcher.Close()

	settled := <-states
	if settled.Loading || settled.Err != "" || settled.Data != "" {
		t.Fatalf("expected a settled zero state, got %+v", settled)
	}
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no snapshot loads for an empty user id")
	}
}

func TestWatcherChangeNotificationTriggersReload(t *testing.T) {
	var calls int32
	notifier := newRecordingNotifier()
	states := make(chan State[string], 16)
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "alice",
		Load: func(context.Context) (string, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return "before", nil
			}
			return "after", nil
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableLocalEvents},
		OnChange: func(state State[string]) { states <- state },
	})
	defer watcher.Close()

	awaitState(t, states, func(s State[string]) bool { return !s.Loading && s.Data == "before" })

	notifier.fire(realtime.TableLocalEvents)
	awaitState(t, states, func(s State[string]) bool { return s.Data == "after" })
}

func TestWatcherLastCommitWins(t *testing.T) {
	gates := make(chan chan string, 4)
	states := make(chan State[string], 16)
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "alice",
		Load: func(context.Context) (string, error) {
			gate := make(chan string)
			gates <- gate
			return <-gate, nil
		},
		OnChange: func(state State[string]) { states <- state },
	})
	defer watcher.Close()

	firstGate := <-gates

	refreshDone := make(chan struct{})
	go func() {
		watcher.Refresh(context.Background())
		close(refreshDone)
	}()
	secondGate := <-gates

	// The newer load finishes first; the stale one commits after it and
	// overwrites. Last committed result wins, by contract.
	secondGate <- "newer"
	awaitState(t, states, func(s State[string]) bool { return s.Data == "newer" })
	<-refreshDone

	firstGate <- "stale"
	awaitState(t, states, func(s State[string]) bool { return s.Data == "stale" })

	if got := watcher.Snapshot(); got.Data != "stale" {
		t.Fatalf("expected the last committed load to win, got %+v", got)
	}
}

func TestWatcherCloseDiscardsInFlightLoad(t *testing.T) {
	gate := make(chan string)
	started := make(chan struct{})
	notifier := newRecordingNotifier()
	var commits int32
	watcher := NewWatcher(WatcherConfig[string]{
		UserID: "alice",
		Load: func(context.Context) (string, error) {
			close(started)
			return <-gate, nil
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableLocalEvents, realtime.TableEventAttendees},
		OnChange: func(state State[string]) {
			if !state.Loading {
				atomic.AddInt32(&commits, 1)
			}
		},
	})

	<-started
	watcher.Close()
	gate <- "late"

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&commits) != 0 {
		t.Fatalf("expected the late result discarded after close")
	}
	if got := atomic.LoadInt32(&notifier.cancelled); got != 2 {
		t.Fatalf("expected both subscriptions cancelled, got %d", got)
	}

	// Close twice is safe.
	watcher.Close()
}
