// Package notification provides the notice manager for broadcasting
// user-facing messages (playback errors, queue confirmations) to
// registered sinks.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level represents the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a single user-facing message.
type Notice struct {
	Level  Level
	Title  string
	Detail string
}

// Sink receives published notices. Sinks must not block; slow sinks
// are cut off after a short timeout.
type Sink func(Notice)

// subscription represents a subscriber's registration.
type subscription struct {
	id   string
	sink Sink
}

// Manager manages notice subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewManager creates a new notice manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe registers a sink and returns the subscription ID.
func (m *Manager) Subscribe(sink Sink) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, sink: sink}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish sends a notice to all subscribers. Each sink runs in its own
// goroutine with a timeout so a stuck sink cannot stall the caller.
func (m *Manager) Publish(n Notice) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()

			done := make(chan struct{})
			go func() {
				s.sink(n)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
				// Sink too slow, move on.
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
