// Package events publishes core notifications (operation results, undo
// stack and tag changes, directory changes, search progress) to any number
// of subscribers, decoupling the core from UI refresh timing.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/justyntemme/solstice/internal/metrics"
)

const (
	OpCompleted = "op-completed"
	UndoChanged = "undo-changed"
	TagsChanged = "tags-changed"
	DirChanged  = "dir-changed"

	SearchProgress = "search-progress"
)

// Event is one notification.
type Event struct {
	Type      string   `json:"type"`
	Op        string   `json:"op,omitempty"`
	Path      string   `json:"path,omitempty"`
	Paths     []string `json:"paths,omitempty"`
	UndoDepth int      `json:"undoDepth,omitempty"`
	RedoDepth int      `json:"redoDepth,omitempty"`
	Gen       int64    `json:"gen,omitempty"`
	Dirs      int      `json:"dirsListed,omitempty"`
	Results   int      `json:"results,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher is the narrow interface producers depend on.
type Publisher interface {
	Publish(Event)
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	metrics.RecordEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
