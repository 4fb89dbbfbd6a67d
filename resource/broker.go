package resource

import (
	"math"
	"sync"

	"github.com/nickjmiller/floneum/errors"
)

// Broker is the concurrent, kind-partitioned table of live resources.
//
// A single table-wide RWMutex guards every bucket: View callbacks run in
// parallel with each other, while Insert, Update and Release exclude every
// other operation regardless of kind. Callbacks passed to View and Update run
// inside that critical section and must not block.
type Broker struct {
	buckets   [kindCount]bucket
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type bucket struct {
	slots []slot
	free  []uint32
	live  int
}

type slot struct {
	value      Resource
	generation uint32
	occupied   bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	b := &Broker{}
	for i := range b.buckets {
		b.buckets[i].slots = make([]slot, 0, 16)
		b.buckets[i].free = make([]uint32, 0, 4)
	}
	return b
}

// Insert stores value in its kind's bucket, reusing a freed slot when one is
// available, and returns a fresh owned handle.
func (b *Broker) Insert(value Resource) (Handle, error) {
	if value == nil {
		return Handle{}, errors.InvalidInput(errors.PhaseBroker, "cannot insert nil resource")
	}
	kind := value.ResourceKind()
	if !kind.Valid() {
		return Handle{}, errors.InvalidInput(errors.PhaseBroker, "unknown resource "+kind.String())
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Handle{}, errors.Closed(errors.PhaseBroker, "broker")
	}

	bk := &b.buckets[kind]
	var idx uint32
	if n := len(bk.free); n > 0 {
		idx = bk.free[n-1]
		bk.free = bk.free[:n-1]
	} else {
		if uint64(len(bk.slots)) >= math.MaxUint32 {
			b.mu.Unlock()
			return Handle{}, errors.New(errors.PhaseBroker, errors.KindOutOfBounds).
				Resource(kind.String()).
				Detail("slot table full").
				Build()
		}
		bk.slots = append(bk.slots, slot{generation: 1})
		idx = uint32(len(bk.slots) - 1)
	}

	s := &bk.slots[idx]
	s.value = value
	s.occupied = true
	bk.live++

	h := Handle{
		Kind:       kind,
		Index:      idx,
		Generation: s.generation,
		Owned:      true,
	}
	b.mu.Unlock()

	b.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h, nil
}

// View runs fn with shared access to the resource behind h.
// Returns a NotFound error if the slot is empty or h is stale.
func (b *Broker) View(h Handle, fn func(Resource) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}
	return fn(s.value)
}

// Update runs fn with exclusive access to the resource behind h.
// Returns a NotFound error if the slot is empty or h is stale.
func (b *Broker) Update(h Handle, fn func(Resource) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}
	return fn(s.value)
}

// Release frees the slot behind h and returns the value it held.
//
// Only owned handles may release. A borrowed handle yields an
// OwnershipViolation error without touching the table. A stale or already
// released handle yields NotFound and never disturbs a newer occupant of the
// same slot. If the value implements Dropper, Drop is called after the lock
// has been released.
func (b *Broker) Release(h Handle) (Resource, error) {
	if !h.Owned {
		return nil, errors.OwnershipViolation(errors.PhaseBroker, h.Kind.String(), h.ID())
	}

	b.mu.Lock()
	s, err := b.lookup(h)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	value := s.value
	s.value = nil
	s.occupied = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	bk := &b.buckets[h.Kind]
	bk.free = append(bk.free, h.Index)
	bk.live--
	b.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	b.notify(Event{Type: EventDropped, Handle: h, Value: value})
	return value, nil
}

// lookup must be called with b.mu held.
func (b *Broker) lookup(h Handle) (*slot, error) {
	if !h.Kind.Valid() {
		return nil, errors.NotFound(errors.PhaseBroker, h.Kind.String(), h.ID())
	}
	bk := &b.buckets[h.Kind]
	if int64(h.Index) >= int64(len(bk.slots)) {
		return nil, errors.NotFound(errors.PhaseBroker, h.Kind.String(), h.ID())
	}
	s := &bk.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil, errors.NotFound(errors.PhaseBroker, h.Kind.String(), h.ID())
	}
	return s, nil
}

// Len returns the number of live resources across all kinds.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for i := range b.buckets {
		n += b.buckets[i].live
	}
	return n
}

// LenKind returns the number of live resources of one kind.
func (b *Broker) LenKind(kind Kind) int {
	if !kind.Valid() {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buckets[kind].live
}

// Each iterates over live resources of one kind under the read lock.
// Handles passed to fn are borrowed.
func (b *Broker) Each(kind Kind, fn func(Handle, Resource) bool) {
	if !kind.Valid() {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, s := range b.buckets[kind].slots {
		if !s.occupied {
			continue
		}
		h := Handle{Kind: kind, Index: uint32(i), Generation: s.generation}
		if !fn(h, s.value) {
			return
		}
	}
}

// Clear releases every live resource while keeping the broker usable.
func (b *Broker) Clear() {
	var handles []Handle
	for _, kind := range Kinds {
		b.Each(kind, func(h Handle, _ Resource) bool {
			h.Owned = true
			handles = append(handles, h)
			return true
		})
	}
	for _, h := range handles {
		_, _ = b.Release(h)
	}
}

// Close releases every live resource and rejects further inserts.
// Intended for host shutdown; plugins must still release what they own.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var dropped []Event
	for k := range b.buckets {
		bk := &b.buckets[k]
		for i := range bk.slots {
			s := &bk.slots[i]
			if !s.occupied {
				continue
			}
			dropped = append(dropped, Event{
				Type:   EventDropped,
				Handle: Handle{Kind: Kind(k), Index: uint32(i), Generation: s.generation, Owned: true},
				Value:  s.value,
			})
			s.value = nil
			s.occupied = false
		}
		bk.slots = nil
		bk.free = nil
		bk.live = 0
	}
	b.mu.Unlock()

	for _, e := range dropped {
		if d, ok := e.Value.(Dropper); ok {
			d.Drop()
		}
		b.notify(e)
	}
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (b *Broker) Subscribe(o Observer) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	b.observers = append(b.observers, o)
}

// Unsubscribe removes an observer.
func (b *Broker) Unsubscribe(o Observer) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	for i, obs := range b.observers {
		if obs == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

func (b *Broker) notify(e Event) {
	b.obsMu.RLock()
	defer b.obsMu.RUnlock()
	for _, o := range b.observers {
		o.OnResourceEvent(e)
	}
}
