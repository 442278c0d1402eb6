package client

import (
	"context"
	"sync"

	"github.com/brandbond/backend/internal/realtime"
	"go.uber.org/zap"
)

// LoadFunc rebuilds a full view model from remote reads.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// State is the externally observable snapshot of a Watcher. Loading is
// true only while the very first load is in flight; reloads keep serving
// the last good data. Err holds the last failure message, empty after any
// successful load.
type State[T any] struct {
	Loading bool
	Err     string
	Data    T
}

// WatcherConfig composes a snapshot loader with change subscriptions.
type WatcherConfig[T any] struct {
	// UserID scopes the watcher; empty settles immediately with zero data
	// and no remote calls.
	UserID string
	Load   LoadFunc[T]
	// Notifier and Tables are optional; without them the watcher only
	// refreshes manually.
	Notifier Notifier
	Tables   []string
	// OnChange, when set, observes every committed state transition.
	OnChange func(State[T])
	Logger   *zap.Logger
}

// Watcher keeps a view model current: one initial snapshot load, then a
// full reload on every change notification or Refresh call. Overlapping
// reloads are not cancelled; whichever load commits last wins.
type Watcher[T any] struct {
	mu       sync.Mutex
	state    State[T]
	closed   bool
	load     LoadFunc[T]
	onChange func(State[T])
	cancels  []func()
	logger   *zap.Logger
}

// NewWatcher constructs the watcher and, for a non-empty user id, starts
// the initial load and opens the change subscriptions.
func NewWatcher[T any](cfg WatcherConfig[T]) *Watcher[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher[T]{
		load:     cfg.Load,
		onChange: cfg.OnChange,
		logger:   logger,
	}

	if cfg.UserID == "" || cfg.Load == nil {
		w.state = State[T]{Loading: false}
		w.emit(w.state)
		return w
	}

	w.state = State[T]{Loading: true}
	w.emit(w.state)

	if cfg.Notifier != nil {
		for _, table := range cfg.Tables {
			cancel := cfg.Notifier.Subscribe(table, func(realtime.Change) {
				go w.reload(context.Background())
			})
			w.cancels = append(w.cancels, cancel)
		}
	}

	go w.reload(context.Background())
	return w
}

// Snapshot returns the current state.
func (w *Watcher[T]) Snapshot() State[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Refresh forces a snapshot reload and blocks until its result is
// committed (or discarded after Close). Failures surface in the state's
// Err field, never as a return value.
func (w *Watcher[T]) Refresh(ctx context.Context) {
	w.reload(ctx)
}

// Close tears down all subscriptions. In-flight loads are not cancelled;
// their results are discarded on commit.
func (w *Watcher[T]) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	cancels := w.cancels
	w.cancels = nil
	w.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (w *Watcher[T]) reload(ctx context.Context) {
	w.mu.Lock()
	if w.closed || w.load == nil {
		w.mu.Unlock()
		return
	}
	load := w.load
	w.mu.Unlock()

	data, err := load(ctx)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if err != nil {
		w.logger.Warn("snapshot load failed", zap.Error(err))
		w.state.Loading = false
		w.state.Err = err.Error()
		// Last good data stays in place.
	} else {
		w.state = State[T]{Loading: false, Err: "", Data: data}
	}
	state := w.state
	onChange := w.onChange
	w.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

func (w *Watcher[T]) emit(state State[T]) {
	if w.onChange != nil {
		w.onChange(state)
	}
}
