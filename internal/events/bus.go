package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Type identifies a queue lifecycle event.
type Type string

const (
	TypeOnline          Type = "online"
	TypeOffline         Type = "offline"
	TypeMessageQueued   Type = "messageQueued"
	TypeMessageRemoved  Type = "messageRemoved"
	TypeMessageSynced   Type = "messageSynced"
	TypeMessageFailed   Type = "messageFailed"
	TypeSyncStarted     Type = "syncStarted"
	TypeSyncCompleted   Type = "syncCompleted"
	TypeSyncError       Type = "syncError"
	TypeAllQueuesCleared Type = "allQueuesCleared"
)

// Event carries the minimal identifying payload for one lifecycle event.
type Event struct {
	Type        Type      `json:"type"`
	ChatID      string    `json:"chatId,omitempty"`
	QueueID     int64     `json:"queueId,omitempty"`
	DeliveredID string    `json:"deliveredId,omitempty"`
	Synced      int       `json:"synced,omitempty"`
	Failed      int       `json:"failed,omitempty"`
	Cleared     int64     `json:"cleared,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Listener receives published events. Listeners are invoked synchronously and
// must not block for long.
type Listener func(Event)

// Bus is a synchronous publish/subscribe channel for queue lifecycle events.
// Each listener is isolated: a panicking listener is logged and cannot
// suppress delivery to the others or crash the publisher.
type Bus struct {
	mu        sync.RWMutex
	nextToken int
	listeners map[int]Listener
	logger    *logrus.Logger
}

func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(listener Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := b.nextToken
	b.nextToken++
	b.listeners[token] = listener

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, token)
	}
}

// Publish delivers the event to every subscribed listener synchronously.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.deliver(listener, event)
	}
}

// ListenerCount returns the number of subscribed listeners.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Bus) deliver(listener Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"event": event.Type,
				"panic": r,
			}).Error("Event listener panicked")
		}
	}()
	listener(event)
}
