package resource

import (
	"github.com/nickjmiller/floneum/errors"
)

// Table provides type-safe access to the resources of one kind.
// It is a thin view over a shared Broker; several tables may share a broker.
type Table[T Resource] struct {
	broker *Broker
	kind   Kind
}

// NewTable creates a typed table over b for the given kind.
func NewTable[T Resource](b *Broker, kind Kind) *Table[T] {
	return &Table[T]{broker: b, kind: kind}
}

// Kind returns the kind this table serves.
func (t *Table[T]) Kind() Kind {
	return t.kind
}

// Broker returns the underlying broker.
func (t *Table[T]) Broker() *Broker {
	return t.broker
}

// Handle rebuilds a handle of this table's kind from plugin-supplied scalars.
func (t *Table[T]) Handle(id uint64, owned bool) Handle {
	return FromID(t.kind, id, owned)
}

// Insert adds a value and returns its owned handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	if value.ResourceKind() != t.kind {
		return Handle{}, errors.TypeMismatch(errors.PhaseBroker, t.kind.String(), value)
	}
	return t.broker.Insert(value)
}

// View runs fn with shared access to the value behind h.
func (t *Table[T]) View(h Handle, fn func(T) error) error {
	if h.Kind != t.kind {
		return errors.NotFound(errors.PhaseBroker, t.kind.String(), h.ID())
	}
	return t.broker.View(h, func(r Resource) error {
		v, ok := r.(T)
		if !ok {
			return errors.TypeMismatch(errors.PhaseBroker, t.kind.String(), r)
		}
		return fn(v)
	})
}

// Update runs fn with exclusive access to the value behind h.
func (t *Table[T]) Update(h Handle, fn func(T) error) error {
	if h.Kind != t.kind {
		return errors.NotFound(errors.PhaseBroker, t.kind.String(), h.ID())
	}
	return t.broker.Update(h, func(r Resource) error {
		v, ok := r.(T)
		if !ok {
			return errors.TypeMismatch(errors.PhaseBroker, t.kind.String(), r)
		}
		return fn(v)
	})
}

// Get copies the reference held behind h out of the table so slow work can
// run without holding the broker lock. The value stays owned by the table.
func (t *Table[T]) Get(h Handle) (T, error) {
	var out T
	err := t.View(h, func(v T) error {
		out = v
		return nil
	})
	return out, err
}

// Release drops the resource behind h and returns it.
func (t *Table[T]) Release(h Handle) (T, error) {
	var zero T
	if h.Kind != t.kind {
		if !h.Owned {
			return zero, errors.OwnershipViolation(errors.PhaseBroker, t.kind.String(), h.ID())
		}
		return zero, errors.NotFound(errors.PhaseBroker, t.kind.String(), h.ID())
	}
	r, err := t.broker.Release(h)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseBroker, t.kind.String(), r)
	}
	return v, nil
}

// Len returns the number of live resources of this kind.
func (t *Table[T]) Len() int {
	return t.broker.LenKind(t.kind)
}

// Each iterates over live resources of this kind. Handles are borrowed.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.broker.Each(t.kind, func(h Handle, r Resource) bool {
		v, ok := r.(T)
		if !ok {
			return true
		}
		return fn(h, v)
	})
}
