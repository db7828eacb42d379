package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func nextWithin(t *testing.T, s *Subscription[int], d time.Duration) Event[int] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()

	ev := hub.Publish(Created, 1)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, Created, ev.Type)
	assert.Equal(t, 0, hub.Len())

	ev = hub.Publish(Updated, 2)
	assert.Equal(t, uint64(2), ev.Seq)
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()
	sub := hub.Subscribe()
	defer sub.Close()

	for i := range 10 {
		hub.Publish(Created, i)
	}

	for i := range 10 {
		ev := nextWithin(t, sub, time.Second)
		assert.Equal(t, i, ev.Payload)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Zero(t, sub.Dropped())
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()

	for i := range 5 {
		hub.Publish(Created, i)
	}

	late := hub.Subscribe()
	defer late.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := late.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	hub.Publish(Deleted, 99)
	ev := nextWithin(t, late, time.Second)
	assert.Equal(t, 99, ev.Payload)
	assert.Equal(t, Deleted, ev.Type)
	assert.Equal(t, uint64(6), ev.Seq)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hub := NewHub[int](WithBufferSize(4), WithLogger(zap.New(core)), WithMetrics(m))

	sub := hub.Subscribe()
	defer sub.Close()

	for i := 1; i <= 10; i++ {
		hub.Publish(Updated, i)
	}

	for want := 7; want <= 10; want++ {
		ev := nextWithin(t, sub, time.Second)
		assert.Equal(t, want, ev.Payload)
	}

	assert.Equal(t, uint64(6), sub.Dropped())
	assert.Equal(t, float64(6), testutil.ToFloat64(m.Dropped))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.Published))
	assert.Equal(t, 1, logs.FilterMessage("subscriber lagging, dropping oldest events").Len())

	// reading resets the streak, so the next overflow is reported again
	for i := 11; i <= 15; i++ {
		hub.Publish(Updated, i)
	}
	assert.Equal(t, 2, logs.FilterMessage("subscriber lagging, dropping oldest events").Len())
	assert.Equal(t, uint64(7), sub.Dropped())
}

func TestSubscriptionCloseUnblocksNext(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hub := NewHub[int](WithMetrics(m))
	sub := hub.Subscribe()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Subscribers))

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}

	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Subscribers))

	// detached subscriptions see nothing further
	hub.Publish(Created, 1)
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscriptionNextHonoursContext(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()
	sub := hub.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sub.Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, hub.Len())
}

func TestHubClose(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()
	s1 := hub.Subscribe()
	s2 := hub.Subscribe()
	assert.Equal(t, 2, hub.Len())

	hub.Close()
	hub.Close()
	assert.True(t, hub.Closed())
	assert.Equal(t, 0, hub.Len())

	_, err := s1.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s2.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.Zero(t, hub.Publish(Created, 1).Seq)

	s3 := hub.Subscribe()
	_, err = s3.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	s3.Close()
}

func TestSubscriptionEvents(t *testing.T) {
	t.Parallel()
	hub := NewHub[int]()
	sub := hub.Subscribe()

	hub.Publish(Created, 1)
	hub.Publish(Updated, 2)
	hub.Publish(Deleted, 3)

	var got []EventType
	for ev := range sub.Events(context.Background()) {
		got = append(got, ev.Type)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []EventType{Created, Updated, Deleted}, got)

	sub.Close()
	for range sub.Events(context.Background()) {
		t.Fatal("closed subscription yielded an event")
	}
}

func TestHubSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	const total = 500

	hub := NewHub[int](WithBufferSize(total))
	fast := hub.Subscribe()
	defer fast.Close()
	slow := hub.Subscribe()
	defer slow.Close()

	// nobody reads while publishing; publish must still complete
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range total {
			hub.Publish(Updated, i)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on subscribers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		for i := range total {
			ev, err := fast.Next(ctx)
			if err != nil {
				return err
			}
			if ev.Payload != i {
				return errors.New("fast subscriber out of order")
			}
		}
		return nil
	})
	g.Go(func() error {
		var last uint64
		for i := 0; i < 50; i++ {
			ev, err := slow.Next(ctx)
			if err != nil {
				return err
			}
			if ev.Seq <= last {
				return errors.New("slow subscriber out of order")
			}
			last = ev.Seq
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	require.NoError(t, g.Wait())
}

func TestHubBoundedSlowSubscriber(t *testing.T) {
	t.Parallel()
	hub := NewHub[int](WithBufferSize(8))
	fast := hub.Subscribe()
	slow := hub.Subscribe()
	defer fast.Close()
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const total = 200
	var g errgroup.Group
	received := make(chan int, total)
	g.Go(func() error {
		for {
			ev, err := fast.Next(ctx)
			if err != nil {
				return err
			}
			received <- ev.Payload
			if ev.Payload == total-1 {
				return nil
			}
		}
	})

	for i := range total {
		hub.Publish(Created, i)
		if i%8 == 7 {
			// give the fast reader a chance to drain its ring
			time.Sleep(time.Millisecond)
		}
	}
	require.NoError(t, g.Wait())
	close(received)

	prev := -1
	for v := range received {
		assert.Greater(t, v, prev)
		prev = v
	}

	var last uint64
	var seen int
	for {
		short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
		ev, err := slow.Next(short)
		cancelShort()
		if err != nil {
			break
		}
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
		seen++
	}
	assert.Equal(t, 8, seen)
	assert.Equal(t, uint64(total), last)
	assert.Equal(t, uint64(total-8), slow.Dropped())
}
