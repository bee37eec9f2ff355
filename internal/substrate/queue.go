package substrate

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// memQueue is an unbounded in-memory FIFO: a ring buffer behind a mutex with
// a single-token wakeup channel for blocked consumers.
type memQueue[T any] struct {
	mu    sync.Mutex
	items *queue.Queue
	wake  chan struct{}
}

// NewQueue creates an empty unbounded queue safe for any number of
// concurrent producers and consumers.
func NewQueue[T any]() Queue[T] {
	return &memQueue[T]{
		items: queue.New(),
		wake:  make(chan struct{}, 1),
	}
}

func (q *memQueue[T]) Put(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()
	q.signal()
}

func (q *memQueue[T]) Get(timeout time.Duration) (T, bool) {
	var zero T

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove().(T)
			remaining := q.items.Length()
			q.mu.Unlock()
			if remaining > 0 {
				// Pass the wakeup on so a sibling consumer is not left
				// sleeping while items remain.
				q.signal()
			}
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-expired:
			return zero, false
		}
	}
}

func (q *memQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *memQueue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
