// Package feed implements an in-process multicast hub. Every published event
// is fanned out to all current subscriptions, each of which owns a bounded
// ring buffer and is consumed at its own pace.
package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	Created EventType = "created"
	Updated EventType = "updated"
	Deleted EventType = "deleted"
)

// Event is an immutable notification. Seq is assigned by the hub and is
// strictly increasing in publish order.
type Event[T any] struct {
	Seq     uint64    `json:"seq"`
	Type    EventType `json:"type"`
	Payload T         `json:"payload"`
	At      time.Time `json:"at"`
}

const defaultBufferSize = 64

type options struct {
	bufferSize int
	log        *zap.Logger
	metrics    *Metrics
}

type Option func(*options)

// WithBufferSize sets the per-subscription ring capacity. Non-positive values
// are ignored.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Hub fans events out to subscriptions. Publishing never waits on a consumer:
// when a subscription's ring is full its oldest buffered event is dropped.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]*Subscription[T]
	seq    uint64
	closed bool

	bufferSize int
	log        *zap.Logger
	metrics    *Metrics
}

func NewHub[T any](opts ...Option) *Hub[T] {
	o := options{
		bufferSize: defaultBufferSize,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Hub[T]{
		subs:       make(map[string]*Subscription[T]),
		bufferSize: o.bufferSize,
		log:        o.log,
		metrics:    o.metrics,
	}
}

// Publish stamps the payload with the next sequence number and hands it to
// every subscription. The returned event is the zero value once the hub is
// closed.
func (h *Hub[T]) Publish(typ EventType, payload T) Event[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Event[T]{}
	}

	h.seq++
	ev := Event[T]{
		Seq:     h.seq,
		Type:    typ,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	for _, s := range h.subs {
		dropped, lagging := s.push(ev)
		if !dropped {
			continue
		}
		h.metrics.dropped()
		if lagging {
			h.log.Warn("subscriber lagging, dropping oldest events",
				zap.String("subscription_id", s.id),
				zap.Int("buffer", h.bufferSize),
				zap.Uint64("seq", ev.Seq),
			)
		}
	}

	h.metrics.published()
	return ev
}

// Subscribe registers a new subscription that receives every event published
// from now on. Subscribing to a closed hub yields an already closed
// subscription.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := newSubscription(h, uuid.NewString(), h.bufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.close()
		return s
	}
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.subscribers(n)
	h.log.Debug("subscriber attached", zap.String("subscription_id", s.id), zap.Int("subscribers", n))
	return s
}

func (h *Hub[T]) remove(s *Subscription[T]) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	s.close()

	if ok {
		h.metrics.subscribers(n)
		h.log.Debug("subscriber detached",
			zap.String("subscription_id", s.id),
			zap.Uint64("dropped", s.Dropped()),
			zap.Int("subscribers", n),
		)
	}
}

// Len reports the number of attached subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close detaches every subscription and turns Publish into a no-op.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription[T])
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	h.metrics.subscribers(0)
	h.log.Info("feed closed", zap.Int("detached", len(subs)))
}
