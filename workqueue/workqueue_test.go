package workqueue

import (
	"sync"
	"testing"
	"time"
)

func TestBoundedDropNewest(t *testing.T) {
	// WHAT: Three pushes into a capacity-2 queue drop exactly the third.
	// WHY: Drop-newest is the backpressure contract the acquisition
	// callback relies on to never block the camera thread.
	q := NewBounded[int](2)

	if !q.TryPush(1) {
		t.Fatal("first push rejected")
	}
	if !q.TryPush(2) {
		t.Fatal("second push rejected")
	}
	if q.TryPush(3) {
		t.Fatal("third push accepted on a full queue")
	}
	if q.Len() != 2 {
		t.Fatalf("len: got %d, want 2", q.Len())
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped: got %d, want 1", q.Dropped())
	}

	// FIFO order among retained items.
	for _, want := range []int{1, 2} {
		got, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != want {
			t.Fatalf("pop: got %d, want %d", got, want)
		}
	}
}

func TestBoundedTryPushNeverBlocks(t *testing.T) {
	q := NewBounded[int](1)
	q.TryPush(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.TryPush(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("TryPush blocked on a full queue")
	}
}

func TestBoundedPopTimeout(t *testing.T) {
	q := NewBounded[int](1)
	start := time.Now()
	_, err := q.Pop(20 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err: got %v, want ErrTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("pop returned before the timeout elapsed")
	}
}

func TestBoundedPopWakesOnPush(t *testing.T) {
	q := NewBounded[int](1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.TryPush(42)
	}()
	got, err := q.Pop(time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestBoundedClear(t *testing.T) {
	q := NewBounded[int](10)
	for i := 0; i < 3; i++ {
		q.TryPush(i)
	}
	if n := q.Clear(); n != 3 {
		t.Fatalf("clear: got %d, want 3", n)
	}
	if q.Len() != 0 {
		t.Fatalf("len after clear: got %d, want 0", q.Len())
	}
}

func TestUnboundedFIFO(t *testing.T) {
	q := NewUnbounded[string]()
	q.Push("a")
	q.Push("b")
	q.Push("c")

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	if _, err := q.Pop(10 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("err: got %v, want ErrTimeout", err)
	}
}

func TestUnboundedConcurrentProducers(t *testing.T) {
	// WHAT: N producers push concurrently; the consumer sees every item.
	// WHY: The persistence queue must never lose an accepted measurement.
	q := NewUnbounded[int]()
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	seen := 0
	for {
		if _, err := q.Pop(10 * time.Millisecond); err != nil {
			break
		}
		seen++
	}
	if seen != producers*perProducer {
		t.Fatalf("items: got %d, want %d", seen, producers*perProducer)
	}
}
