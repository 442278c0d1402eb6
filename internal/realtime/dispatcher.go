package realtime

import (
	"context"
	"sync"
	"time"
)

// Table names that emit change notifications.
const (
	TableProfiles         = "profiles"
	TableUserPhotos       = "user_photos"
	TableUserInterests    = "user_interests"
	TableUserPreferences  = "user_preferences"
	TableLocalEvents      = "local_events"
	TableEventAttendees   = "event_attendees"
	TableUserActivities   = "user_activities"
	TableUserInsights     = "user_insights"
	TableConversations    = "conversations"
	TableMessages         = "messages"
	TableCommunities      = "communities"
	TableCommunityMembers = "community_members"
)

// Change is a best-effort "rows matching your filter changed" signal.
// Consumers reload their snapshot on receipt; the payload carries no row
// data and no delivery or ordering guarantee.
type Change struct {
	Table     string    `json:"table"`
	UserID    string    `json:"user_id"`
	RowIDs    []string  `json:"row_ids,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher fans Change notifications out to per-user subscribers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Change
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers interest in all changes scoped to userID. The returned
// cancel function is idempotent and safe to call after the context is done.
// An empty userID yields a closed stream and a no-op cancel.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Change, func()) {
	if userID == "" {
		ch := make(chan Change)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Change, d.bufferSize),
	}
	d.register(userID, sub)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.unregister(userID, sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.stream, cancel
}

// Publish delivers the change to every subscriber of change.UserID. Slow
// subscribers whose buffers are full miss the notification; the snapshot
// reload contract tolerates drops.
func (d *Dispatcher) Publish(change Change) {
	if change.UserID == "" || change.Table == "" {
		return
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}
	d.mu.RLock()
	subs := d.subscribers[change.UserID]
	if len(subs) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- change:
		default:
		}
	}
}

// PublishAll delivers the same table change to several users, one
// notification each.
func (d *Dispatcher) PublishAll(table string, userIDs []string, rowIDs []string) {
	now := time.Now().UTC()
	for _, userID := range userIDs {
		d.Publish(Change{Table: table, UserID: userID, RowIDs: rowIDs, Timestamp: now})
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(userID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*subscriber)
	}
	d.subscribers[userID][sub.id] = sub
}

func (d *Dispatcher) unregister(userID string, subscriberID int64) {
	d.mu.Lock()
	subs := d.subscribers[userID]
	if subs != nil {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
