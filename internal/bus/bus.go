// Package bus provides the in-process status broadcast bus.
//
// Observers subscribe to sync phase transitions; the engine publishes one
// event per transition. Delivery is synchronous within the publisher's
// call, in registration order, with no buffering or replay - a listener
// registered after an event misses it.
package bus

import (
	"log"
	"os"
	"sync"
	"time"
)

// Status identifies a sync phase transition.
type Status string

const (
	// StatusStarted is published when a sync pass acquires the lock.
	StatusStarted Status = "started"

	// StatusUploading is published when the upload phase begins.
	StatusUploading Status = "uploading"

	// StatusDownloading is published when the download phase begins.
	StatusDownloading Status = "downloading"

	// StatusSuccess is the terminal event of a pass that reached the end.
	StatusSuccess Status = "success"

	// StatusError is the terminal event of a pass that failed as a whole.
	StatusError Status = "error"

	// StatusOffline is published when the connectivity check fails.
	StatusOffline Status = "offline"
)

// Event is one published status transition.
type Event struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Listener receives published events.
type Listener func(Event)

// Bus fans events out to subscribed listeners.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners []subscription
	logger    *log.Logger
}

type subscription struct {
	id int
	fn Listener
}

// New creates an empty bus.
// If logger is nil, a default logger writing to stderr is used.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(os.Stderr, "[bus] ", log.LstdFlags)
	}
	return &Bus{logger: logger}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Listeners are invoked in registration order.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.listeners {
			if sub.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event synchronously to every listener, in
// registration order. A panicking listener is recovered and logged and
// does not prevent delivery to subsequent listeners.
func (b *Bus) Publish(status Status, data any) {
	event := Event{
		Status:    status,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.Lock()
	subs := make([]subscription, len(b.listeners))
	copy(subs, b.listeners)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("listener %d panicked on %s event: %v", sub.id, event.Status, r)
		}
	}()
	sub.fn(event)
}
