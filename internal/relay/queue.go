package relay

import "sync"

// Listener receives notifications from a transport. Notify is only ever
// called from inside Transport.Service.
type Listener interface {
	Notify(n Notification)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(n Notification)

func (f ListenerFunc) Notify(n Notification) { f(n) }

// Queue is the single-consumer hand-off between a transport's I/O goroutines
// and the goroutine that services it. Producers Push from any goroutine;
// the servicing goroutine Drains and dispatches.
type Queue struct {
	mu    sync.Mutex
	items []Notification
}

// Push appends notifications in order.
func (q *Queue) Push(ns ...Notification) {
	q.mu.Lock()
	q.items = append(q.items, ns...)
	q.mu.Unlock()
}

// Drain removes and returns everything queued so far.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset discards everything queued.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// DispatchAll drains q into l. Notifications pushed while dispatching are
// left for the next call, so a listener that issues requests cannot starve
// the host loop.
func (q *Queue) DispatchAll(l Listener) int {
	items := q.Drain()
	if l == nil {
		return len(items)
	}
	for _, n := range items {
		l.Notify(n)
	}
	return len(items)
}
