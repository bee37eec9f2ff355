package substrate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/kpeterse/crew/internal/substrate"
)

func TestQueueFIFO(t *testing.T) {
	q := substrate.NewQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Put(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.Get(time.Second)
		if !ok {
			t.Fatalf("Get returned no item, want %d", want)
		}
		if got != want {
			t.Errorf("Get = %d, want %d", got, want)
		}
	}
}

func TestQueueGetTimeout(t *testing.T) {
	q := substrate.NewQueue[int]()

	start := time.Now()
	_, ok := q.Get(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("Get on empty queue returned an item")
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Get returned after %v, want at least ~50ms", elapsed)
	}
}

func TestQueueGetWakesOnPut(t *testing.T) {
	q := substrate.NewQueue[string]()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put("hello")
	}()

	got, ok := q.Get(2 * time.Second)
	if !ok {
		t.Fatal("Get returned no item")
	}
	if got != "hello" {
		t.Errorf("Get = %q, want %q", got, "hello")
	}
}

func TestQueueLen(t *testing.T) {
	q := substrate.NewQueue[int]()
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}

	q.Put(1)
	q.Put(2)
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}

	q.Get(time.Second)
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

// TestQueueConcurrentConsumers checks every item is delivered exactly once
// when multiple consumers compete, and that none of them is left sleeping
// while items remain.
func TestQueueConcurrentConsumers(t *testing.T) {
	const (
		consumers = 4
		items     = 200
	)

	q := substrate.NewQueue[int]()
	results := make(chan int, items)

	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.Get(200 * time.Millisecond)
				if !ok {
					return
				}
				results <- v
			}
		}()
	}

	for i := 0; i < items; i++ {
		q.Put(i)
	}

	wg.Wait()
	close(results)

	seen := make(map[int]int)
	for v := range results {
		seen[v]++
	}
	if len(seen) != items {
		t.Fatalf("received %d distinct items, want %d", len(seen), items)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("item %d delivered %d times, want once", v, n)
		}
	}
}
