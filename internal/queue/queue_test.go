package queue

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int](4, 16)

	for i := range 5 {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if got := q.Drain(0); !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
		t.Errorf("Drain(0) = %v, want [0 1 2 3 4]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if got := q.Drain(0); got != nil {
		t.Errorf("Drain on empty queue = %v, want nil", got)
	}
}

func TestQueue_DrainMax(t *testing.T) {
	q := New[int](8, 8)
	q.Push(1, 2, 3, 4, 5)

	if got := q.Drain(2); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Drain(2) = %v, want [1 2]", got)
	}
	if got := q.Drain(10); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("Drain(10) = %v, want [3 4 5]", got)
	}
}

func TestQueue_GrowsToLimit(t *testing.T) {
	q := New[int](2, 10)
	for i := range 10 {
		q.Push(i)
	}

	stats := q.Stats()
	if stats.Cap != 10 {
		t.Errorf("Cap = %d, want 10", stats.Cap)
	}
	if stats.Growths != 3 { // 2 → 4 → 8 → 10
		t.Errorf("Growths = %d, want 3", stats.Growths)
	}
	if stats.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", stats.Dropped)
	}
}

func TestQueue_DropsOldestAtLimit(t *testing.T) {
	q := New[int](2, 4)
	q.Push(1, 2, 3, 4, 5, 6)

	if got := q.Drain(0); !slices.Equal(got, []int{3, 4, 5, 6}) {
		t.Errorf("Drain(0) = %v, want [3 4 5 6]", got)
	}

	stats := q.Stats()
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
	if stats.Pushed != 6 || stats.Popped != 4 {
		t.Errorf("Pushed/Popped = %d/%d, want 6/4", stats.Pushed, stats.Popped)
	}
}

func TestQueue_WrapAroundGrow(t *testing.T) {
	q := New[int](4, 16)
	q.Push(1, 2, 3)
	q.Drain(2)      // head moves to index 2
	q.Push(4, 5, 6) // wraps
	q.Push(7, 8)    // grows while wrapped

	if got := q.Drain(0); !slices.Equal(got, []int{3, 4, 5, 6, 7, 8}) {
		t.Errorf("Drain(0) = %v, want [3 4 5 6 7 8]", got)
	}
}

func TestQueue_Close(t *testing.T) {
	q := New[string](2, 2)
	q.Push("a")
	q.Close()

	if q.Push("b") {
		t.Error("Push after Close returned true")
	}
	if got := q.Drain(0); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Drain after Close = %v, want [a]", got)
	}
	if q.Wait(context.Background()) {
		t.Error("Wait on closed empty queue returned true")
	}
}

func TestQueue_WaitUnblocksOnPush(t *testing.T) {
	q := New[int](2, 2)

	done := make(chan bool)
	go func() {
		done <- q.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(1)

	select {
	case ok := <-done:
		if !ok {
			t.Error("Wait returned false after Push")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock")
	}
}

func TestQueue_WaitHonoursContext(t *testing.T) {
	q := New[int](2, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if q.Wait(ctx) {
		t.Error("Wait returned true on empty queue")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int](4, 10000)

	var wg sync.WaitGroup
	for p := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				q.Push(p*100 + i)
			}
		}()
	}
	wg.Wait()

	got := q.Drain(0)
	if len(got) != 800 {
		t.Fatalf("drained %d items, want 800", len(got))
	}
	slices.Sort(got)
	for i, v := range got {
		if v != i {
			t.Fatalf("missing item %d", i)
		}
	}
}
