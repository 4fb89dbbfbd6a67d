package lazy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestValue_Ready(t *testing.T) {
	var calls atomic.Int32
	v := New(func() (int, error) {
		calls.Add(1)
		return 42, nil
	})

	if v.State() != Uninitialized {
		t.Fatalf("State = %v, want uninitialized", v.State())
	}
	if _, ok := v.Peek(); ok {
		t.Fatal("Peek must not report a value before Get")
	}

	for i := 0; i < 3; i++ {
		got, err := v.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != 42 {
			t.Fatalf("Get = %d, want 42", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("init called %d times, want 1", calls.Load())
	}
	if v.State() != Ready {
		t.Fatalf("State = %v, want ready", v.State())
	}
	if got, ok := v.Peek(); !ok || got != 42 {
		t.Fatalf("Peek = (%d, %v)", got, ok)
	}
}

func TestValue_FaultedReplaysSameError(t *testing.T) {
	var calls atomic.Int32
	v := New(func() (string, error) {
		calls.Add(1)
		return "", errors.New("disk full")
	})

	_, first := v.Get()
	if first == nil {
		t.Fatal("Expected construction error")
	}
	for i := 0; i < 5; i++ {
		_, err := v.Get()
		if err != first {
			t.Fatalf("Get #%d returned %v, want the cached error", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("init called %d times, want 1", calls.Load())
	}
	if v.State() != Faulted {
		t.Fatalf("State = %v, want faulted", v.State())
	}
}

func TestValue_ConcurrentGet(t *testing.T) {
	var calls atomic.Int32
	v := New(func() (*int, error) {
		calls.Add(1)
		n := 7
		return &n, nil
	})

	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = v.Get()
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("init called %d times, want 1", calls.Load())
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("result %d differs from result 0", i)
		}
	}
}
