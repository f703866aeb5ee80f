// Package realtime delivers row-change notifications to in-process
// listeners. Notifications carry no payload guarantee beyond "a row of this
// table changed in this way"; listeners re-read whatever they need.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dragon-bridge-community/community-api/pkg/metrics"
	"github.com/dragon-bridge-community/community-api/pkg/utilities"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
	All    EventType = "*"
)

// Channel is the notification channel (postgres / redis) every driver uses.
const Channel = "realtime"

// Event is a single change notification.
type Event struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	At    time.Time `json:"at,omitempty"`
}

// Handler receives events for a subscription. It runs on the driver's
// delivery goroutine and must not block for long.
type Handler func(Event)

// Handle identifies a subscription for Unsubscribe.
type Handle struct {
	ID    string
	Table string
	Event EventType
}

// Bus is the subscription interface consumed by the aggregator.
type Bus interface {
	Subscribe(table string, event EventType, fn Handler) (Handle, error)
	Unsubscribe(h Handle) error
}

var (
	ErrUnknownHandle = errors.New("realtime: unknown subscription handle")
	ErrClosed        = errors.New("realtime: bus closed")
)

type subscription struct {
	handle Handle
	fn     Handler
}

// Registry is the subscription table shared by every driver.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]subscription
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]subscription)}
}

// Subscribe registers fn for events of table matching event.
func (r *Registry) Subscribe(table string, event EventType, fn Handler) (Handle, error) {
	if table == "" {
		return Handle{}, errors.New("realtime: table is required")
	}
	if fn == nil {
		return Handle{}, errors.New("realtime: handler is required")
	}
	if event == "" {
		event = All
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Handle{}, ErrClosed
	}
	h := Handle{ID: utilities.NewKSUID(), Table: table, Event: event}
	r.subs[h.ID] = subscription{handle: h, fn: fn}
	return h, nil
}

// Unsubscribe stops delivery to h.
func (r *Registry) Unsubscribe(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[h.ID]; !ok {
		return ErrUnknownHandle
	}
	delete(r.subs, h.ID)
	return nil
}

// Active returns the number of live subscriptions.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Dispatch delivers ev to every matching subscription and returns how many
// handlers ran. An event of type All reaches every subscription on its
// table. Handlers are called outside the lock so they may
// unsubscribe themselves.
func (r *Registry) Dispatch(ev Event) int {
	r.mu.RLock()
	var matched []Handler
	for _, s := range r.subs {
		if s.handle.Table == ev.Table && (s.handle.Event == All || ev.Type == All || s.handle.Event == ev.Type) {
			matched = append(matched, s.fn)
		}
	}
	r.mu.RUnlock()
	for _, fn := range matched {
		fn(ev)
	}
	metrics.BusEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	return len(matched)
}

// Resync dispatches an All event to every subscribed table, for drivers
// that may have missed notifications. It returns the tables it reached.
func (r *Registry) Resync() []string {
	r.mu.RLock()
	seen := make(map[string]bool)
	var tables []string
	for _, s := range r.subs {
		if !seen[s.handle.Table] {
			seen[s.handle.Table] = true
			tables = append(tables, s.handle.Table)
		}
	}
	r.mu.RUnlock()
	sort.Strings(tables)
	for _, t := range tables {
		r.Dispatch(Event{Table: t, Type: All, At: time.Now()})
	}
	return tables
}

// closeRegistry drops all subscriptions and refuses new ones.
func (r *Registry) closeRegistry() {
	r.mu.Lock()
	r.closed = true
	r.subs = make(map[string]subscription)
	r.mu.Unlock()
}

// DecodeEvent parses a notification payload.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Table == "" {
		return Event{}, errors.New("decode event: missing table")
	}
	ev.Type = EventType(strings.ToUpper(string(ev.Type)))
	switch ev.Type {
	case Insert, Update, Delete:
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", ev.Type)
	}
	// CDC payloads may schema-qualify the table.
	if i := strings.LastIndexByte(ev.Table, '.'); i >= 0 {
		ev.Table = ev.Table[i+1:]
	}
	return ev, nil
}
