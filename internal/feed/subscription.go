package feed

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("feed: subscription closed")

// Subscription is one consumer's view of the hub. Its ring buffer holds at
// most the hub's buffer size; on overflow the oldest entry is overwritten.
type Subscription[T any] struct {
	id  string
	hub *Hub[T]

	mu      sync.Mutex
	buf     []Event[T]
	head    int
	n       int
	lagging bool
	closed  bool

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

func newSubscription[T any](h *Hub[T], id string, size int) *Subscription[T] {
	return &Subscription[T]{
		id:    id,
		hub:   h,
		buf:   make([]Event[T], size),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *Subscription[T]) ID() string { return s.id }

// Dropped is the number of events discarded because this subscription fell
// behind.
func (s *Subscription[T]) Dropped() uint64 { return s.dropped.Load() }

// push reports whether an event had to be dropped and whether that drop
// started a new lagging streak.
func (s *Subscription[T]) push(ev Event[T]) (dropped, lagging bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, false
	}

	size := len(s.buf)
	if s.n == size {
		s.buf[s.head] = ev
		s.head = (s.head + 1) % size
		dropped = true
		lagging = !s.lagging
		s.lagging = true
	} else {
		s.buf[(s.head+s.n)%size] = ev
		s.n++
	}
	s.mu.Unlock()

	if dropped {
		s.dropped.Add(1)
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return dropped, lagging
}

func (s *Subscription[T]) pop() (Event[T], bool) {
	var zero Event[T]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.n == 0 {
		return zero, false
	}

	ev := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.n--
	s.lagging = false
	return ev, true
}

// Next returns the oldest buffered event, waiting for one if necessary. It
// returns ErrClosed once the subscription is closed and ctx.Err() when ctx is
// done first.
func (s *Subscription[T]) Next(ctx context.Context) (Event[T], error) {
	for {
		if ev, ok := s.pop(); ok {
			return ev, nil
		}

		select {
		case <-s.ready:
		case <-s.done:
			return Event[T]{}, ErrClosed
		case <-ctx.Done():
			return Event[T]{}, ctx.Err()
		}
	}
}

// Events ranges over the subscription until it is closed or ctx is done.
func (s *Subscription[T]) Events(ctx context.Context) iter.Seq[Event[T]] {
	return func(yield func(Event[T]) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Close detaches the subscription from the hub and releases its buffer. It
// is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.hub.remove(s)
}

func (s *Subscription[T]) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.buf = nil
		s.n = 0
		s.mu.Unlock()
		close(s.done)
	})
}
