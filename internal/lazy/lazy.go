// Package lazy provides a deferred, fallible, run-once initializer.
//
// A Value moves from Uninitialized to either Ready or Faulted on first Get and
// never leaves that state. A construction error is cached and returned
// verbatim on every later Get; construction is never retried.
package lazy

import (
	"sync"
	"sync/atomic"
)

// State is the construction state of a Value.
type State uint32

const (
	Uninitialized State = iota
	Ready
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Value holds a T built on first use.
type Value[T any] struct {
	value T
	err   error
	init  func() (T, error)
	once  sync.Once
	state atomic.Uint32
}

// New returns a Value that calls init at most once.
func New[T any](init func() (T, error)) *Value[T] {
	return &Value[T]{init: init}
}

// Get constructs the value on first call and returns the cached result
// afterwards. Safe for concurrent use.
func (v *Value[T]) Get() (T, error) {
	v.once.Do(func() {
		val, err := v.init()
		v.init = nil
		if err != nil {
			v.err = err
			v.state.Store(uint32(Faulted))
			return
		}
		v.value = val
		v.state.Store(uint32(Ready))
	})
	return v.value, v.err
}

// State reports the construction state without triggering construction.
func (v *Value[T]) State() State {
	return State(v.state.Load())
}

// Peek returns the value if it is Ready, without triggering construction.
func (v *Value[T]) Peek() (T, bool) {
	if v.State() != Ready {
		var zero T
		return zero, false
	}
	return v.value, true
}
