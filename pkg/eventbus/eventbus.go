package eventbus

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// EventBus is a typed pub/sub with non-blocking publish. Slow subscribers
// drop events rather than holding up the publisher.
type EventBus[T any] struct {
	subscribers   *xsync.Map[string, *subscriber[T]]
	isShutdown    atomic.Bool
	subscriberSeq atomic.Uint64
	published     atomic.Uint64
	bufferSize    int
}

type subscriber[T any] struct {
	ch      chan T
	done    chan struct{}
	id      string
	dropped atomic.Uint64
	mu      sync.Mutex
	closed  bool
}

// send delivers without blocking, the lock keeps close and send apart
func (s *subscriber[T]) send(event T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
		close(s.done)
	}
}

type Config struct {
	BufferSize int
}

var DefaultConfig = Config{
	BufferSize: 64,
}

func New[T any]() *EventBus[T] {
	return NewWithConfig[T](DefaultConfig)
}

func NewWithConfig[T any](config Config) *EventBus[T] {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig.BufferSize
	}
	return &EventBus[T]{
		subscribers: xsync.NewMap[string, *subscriber[T]](),
		bufferSize:  config.BufferSize,
	}
}

// Subscribe returns a channel of events and a cleanup function. The channel is
// closed when ctx is done, cleanup is called or the bus shuts down.
func (eb *EventBus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if eb.isShutdown.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := "sub_" + strconv.FormatUint(eb.subscriberSeq.Add(1), 10)
	sub := &subscriber[T]{
		id:   id,
		ch:   make(chan T, eb.bufferSize),
		done: make(chan struct{}),
	}
	eb.subscribers.Store(id, sub)
	// lost a race with Shutdown
	if eb.isShutdown.Load() {
		eb.unsubscribe(id)
		sub.close()
	}

	go func() {
		select {
		case <-ctx.Done():
			eb.unsubscribe(id)
		case <-sub.done:
		}
	}()

	return sub.ch, func() { eb.unsubscribe(id) }
}

// SubscribeFunc runs fn for every event on its own goroutine until ctx is done
// or the bus shuts down. The returned function unsubscribes.
func (eb *EventBus[T]) SubscribeFunc(ctx context.Context, fn func(T)) func() {
	events, cleanup := eb.Subscribe(ctx)
	go func() {
		for event := range events {
			fn(event)
		}
	}()
	return cleanup
}

// Publish sends event to every subscriber and returns how many received it
func (eb *EventBus[T]) Publish(event T) int {
	if eb.isShutdown.Load() {
		return 0
	}
	eb.published.Add(1)

	delivered := 0
	eb.subscribers.Range(func(_ string, sub *subscriber[T]) bool {
		if sub.send(event) {
			delivered++
		}
		return true
	})
	return delivered
}

// Shutdown closes every subscriber channel, later publishes are no-ops
func (eb *EventBus[T]) Shutdown() {
	if !eb.isShutdown.CompareAndSwap(false, true) {
		return
	}
	eb.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		sub.close()
		return true
	})
	eb.subscribers.Clear()
}

type Stats struct {
	Subscribers  int
	Published    uint64
	TotalDropped uint64
	IsShutdown   bool
}

func (eb *EventBus[T]) Stats() Stats {
	stats := Stats{
		IsShutdown: eb.isShutdown.Load(),
		Published:  eb.published.Load(),
	}
	eb.subscribers.Range(func(_ string, sub *subscriber[T]) bool {
		stats.Subscribers++
		stats.TotalDropped += sub.dropped.Load()
		return true
	})
	return stats
}

func (eb *EventBus[T]) unsubscribe(id string) {
	if sub, ok := eb.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}
