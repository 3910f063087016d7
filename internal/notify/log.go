// Package notify records fire-and-forget user notifications ("3 products have
// been deleted.") and hands them to observers without ever blocking the
// component that published them.
package notify

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Level classifies a notification for presentation.
type Level string

const (
	// LevelSuccess reports a completed operation.
	LevelSuccess Level = "success"
	// LevelError reports a failed operation.
	LevelError Level = "error"
	// LevelInfo reports a neutral event such as a logout.
	LevelInfo Level = "info"
)

// DefaultCapacity bounds the retained history of a Log.
const DefaultCapacity = 100

// Event is a single notification.
type Event struct {
	Version int64     `json:"version"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(level Level, message string)
}

// Discard is a Notifier that drops every event.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Level, string) {}

type cursor struct {
	Version int64 `json:"v"`
}

// Log keeps a bounded, versioned history of notifications and fans them out
// to subscribers.
type Log struct {
	mu          sync.RWMutex
	capacity    int
	version     int64
	events      []Event
	subscribers map[int]chan Event
	nextSub     int
	now         func() time.Time
}

// NewLog creates a log retaining at most capacity events. A capacity below one
// uses DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity:    capacity,
		subscribers: make(map[int]chan Event),
		now:         time.Now,
	}
}

// Notify implements Notifier.
func (l *Log) Notify(level Level, message string) {
	l.Publish(level, message)
}

// Publish records an event and returns it with its assigned version.
// Subscribers whose buffers are full miss the event.
func (l *Log) Publish(level Level, message string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.version++
	ev := Event{Version: l.version, Level: level, Message: message, Time: l.now()}
	l.events = append(l.events, ev)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}

	for _, ch := range l.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Subscribe registers a channel receiving future events. The returned cancel
// function unregisters and closes it.
func (l *Log) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subscribers[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// CurrentToken returns a token representing the latest event.
func (l *Log) CurrentToken() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return encodeToken(l.version)
}

// Since returns the retained events published after token and a token for the
// next call. An empty token returns every retained event.
func (l *Log) Since(token string) ([]Event, string, error) {
	var after int64
	if token != "" {
		v, err := decodeToken(token)
		if err != nil {
			return nil, "", err
		}
		after = v
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if after > l.version {
		return nil, "", fmt.Errorf("token version %d is ahead of log version %d", after, l.version)
	}

	var events []Event
	for _, ev := range l.events {
		if ev.Version > after {
			events = append(events, ev)
		}
	}
	return events, encodeToken(l.version), nil
}

func encodeToken(version int64) string {
	raw, _ := json.Marshal(cursor{Version: version}) //nolint:errcheck
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeToken(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid notification token: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return 0, fmt.Errorf("invalid notification token: %w", err)
	}
	if c.Version < 0 {
		return 0, fmt.Errorf("invalid notification token: negative version")
	}
	return c.Version, nil
}
