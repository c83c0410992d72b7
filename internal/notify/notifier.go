// Package notify shows one transient, auto-dismissing message at a time.
package notify

import (
	"sync"
	"time"

	"text-extractor/internal/domain"
)

// DefaultDelay is how long a notification stays visible.
const DefaultDelay = 1000 * time.Millisecond

// Sink renders notifications. Calls are serialised by the Notifier and must
// not call back into it.
type Sink interface {
	Show(n domain.Notification)
	Dismiss(n domain.Notification)
}

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

// Notifier replaces the visible notification on every Show. Each notification
// owns its timer and generation, so a replaced notification's timer can never
// dismiss its successor.
type Notifier struct {
	mu    sync.Mutex
	sink  Sink
	delay time.Duration
	now   func() time.Time
	after afterFunc

	generation uint64
	current    *domain.Notification
	timer      timer
	closed     bool
}

// New creates a notifier with the given auto-dismiss delay.
func New(sink Sink, delay time.Duration) *Notifier {
	return NewForTests(sink, delay, time.Now, func(d time.Duration, f func()) timer {
		return time.AfterFunc(d, f)
	})
}

// NewForTests creates a notifier with an injectable clock and timer factory.
func NewForTests(sink Sink, delay time.Duration, now func() time.Time, after afterFunc) *Notifier {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Notifier{
		sink:  sink,
		delay: delay,
		now:   now,
		after: after,
	}
}

// Show replaces any visible message and schedules its auto-dismiss. It is a
// no-op after Close.
func (n *Notifier) Show(message string, success bool) domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return domain.Notification{}
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	n.generation++
	note := domain.Notification{
		Generation: n.generation,
		Message:    message,
		Success:    success,
		ShownAt:    n.now(),
		Delay:      n.delay,
	}
	n.current = &note
	n.sink.Show(note)

	gen := note.Generation
	n.timer = n.after(n.delay, func() { n.expire(gen) })
	return note
}

// Current returns the visible notification, if any.
func (n *Notifier) Current() (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return domain.Notification{}, false
	}
	return *n.current, true
}

// Close stops the pending timer and dismisses the visible notification.
// Safe to call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.current != nil {
		note := *n.current
		n.current = nil
		n.sink.Dismiss(note)
	}
}

// expire dismisses the notification of generation gen if it is still visible.
func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || n.current == nil || n.current.Generation != gen {
		return
	}
	note := *n.current
	n.current = nil
	n.timer = nil
	n.sink.Dismiss(note)
}
