// Package alert holds the queue of transient, user-visible notices shown
// alongside the chat transcript. A Notifier is created at startup, handed to
// the components that raise alerts and closed on shutdown.
package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTTL is how long an alert stays visible when no TTL is configured.
const DefaultTTL = 3 * time.Second

// Level classifies an alert for styling.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel converts s into a Level, accepting any letter case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown alert level %q", s)
	}
	return l, nil
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return true
	}
	return false
}

// Label returns the display label, e.g. "Warning".
func (l Level) Label() string {
	// Casers are stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(string(l))
}

// Alert is one notice in the queue.
type Alert struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// WithMaxAlerts bounds the queue. When full, the oldest hidden alerts are
// pruned first and then the oldest visible ones.
func WithMaxAlerts(limit int) Option {
	return func(n *Notifier) {
		n.maxAlerts = limit
	}
}

// AddOption configures a single Add call.
type AddOption func(*addOptions)

type addOptions struct {
	before func(Alert)
}

// BeforeSchedule runs fn with the new alert before it is queued and before
// its expiry is scheduled. fn also runs when the notifier is closed; Add then
// returns the alert hidden.
func BeforeSchedule(fn func(Alert)) AddOption {
	return func(o *addOptions) {
		o.before = fn
	}
}

// Notifier is a concurrency-safe alert queue with auto-expiry.
type Notifier struct {
	mu          sync.Mutex
	ttl         time.Duration
	maxAlerts   int
	alerts      []Alert
	timers      map[string]*time.Timer
	subscribers map[int]func(Alert)
	nextSub     int
	closed      bool
	now         func() time.Time
}

// New creates a Notifier whose alerts hide themselves after ttl. A
// non-positive ttl selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	n := &Notifier{
		ttl:         ttl,
		maxAlerts:   100,
		timers:      make(map[string]*time.Timer),
		subscribers: make(map[int]func(Alert)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// TTL returns the visibility window for new alerts.
func (n *Notifier) TTL() time.Duration {
	return n.ttl
}

// Add appends a visible alert and schedules it to be hidden after the TTL.
// Unknown levels are stored as info. After Close the alert is returned
// hidden and not queued.
func (n *Notifier) Add(level Level, content string, opts ...AddOption) Alert {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !level.Valid() {
		level = LevelInfo
	}
	now := n.now()
	a := Alert{
		ID:        uuid.NewString(),
		Level:     level,
		Label:     level.Label(),
		Content:   content,
		Visible:   true,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}
	if o.before != nil {
		o.before(a)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		a.Visible = false
		return a
	}
	n.alerts = append(n.alerts, a)
	n.enforceLimitLocked()
	id := a.ID
	n.timers[id] = time.AfterFunc(n.ttl, func() {
		n.Hide(id)
	})
	subs := n.subscribersLocked()
	n.mu.Unlock()

	notify(subs, a)
	return a
}

// Hide marks the alert hidden. It returns false when the id is unknown or
// the alert was already hidden.
func (n *Notifier) Hide(id string) bool {
	n.mu.Lock()
	idx := n.indexLocked(id)
	if idx < 0 || !n.alerts[idx].Visible {
		n.mu.Unlock()
		return false
	}
	n.alerts[idx].Visible = false
	hidden := n.alerts[idx]
	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
	subs := n.subscribersLocked()
	n.mu.Unlock()

	notify(subs, hidden)
	return true
}

// Visible returns a snapshot of the alerts currently shown, oldest first.
func (n *Notifier) Visible() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Alert, 0, len(n.alerts))
	for _, a := range n.alerts {
		if a.Visible {
			out = append(out, a)
		}
	}
	return out
}

// All returns a snapshot of every queued alert, hidden ones included.
func (n *Notifier) All() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Alert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

// Subscribe registers fn to be called after every add and hide. The returned
// function removes the subscription. Callbacks run on the caller's goroutine
// and must not block.
func (n *Notifier) Subscribe(fn func(Alert)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	n.subscribers[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
}

// Prune drops hidden alerts from the queue and returns how many were removed.
func (n *Notifier) Prune() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	kept := n.alerts[:0]
	for _, a := range n.alerts {
		if a.Visible {
			kept = append(kept, a)
		}
	}
	removed := len(n.alerts) - len(kept)
	n.alerts = kept
	return removed
}

// Close stops all pending expiry timers and drops subscribers. It is safe to
// call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	clear(n.subscribers)
}

func (n *Notifier) indexLocked(id string) int {
	for i := range n.alerts {
		if n.alerts[i].ID == id {
			return i
		}
	}
	return -1
}

func (n *Notifier) subscribersLocked() []func(Alert) {
	if len(n.subscribers) == 0 {
		return nil
	}
	subs := make([]func(Alert), 0, len(n.subscribers))
	for _, fn := range n.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func (n *Notifier) enforceLimitLocked() {
	if n.maxAlerts <= 0 || len(n.alerts) <= n.maxAlerts {
		return
	}

	kept := n.alerts[:0]
	excess := len(n.alerts) - n.maxAlerts
	for _, a := range n.alerts {
		if excess > 0 && !a.Visible {
			excess--
			continue
		}
		kept = append(kept, a)
	}
	n.alerts = kept

	for excess > 0 && len(n.alerts) > 0 {
		oldest := n.alerts[0]
		if t, ok := n.timers[oldest.ID]; ok {
			t.Stop()
			delete(n.timers, oldest.ID)
		}
		n.alerts = n.alerts[1:]
		excess--
	}
}

func notify(subs []func(Alert), a Alert) {
	for _, fn := range subs {
		fn(a)
	}
}
