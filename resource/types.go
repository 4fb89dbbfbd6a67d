package resource

import "fmt"

// Kind identifies one of the closed set of resource kinds a plugin can hold.
// Each kind owns a dedicated slot array in the broker.
type Kind uint8

const (
	KindModel Kind = iota
	KindEmbeddingDb
	KindPage
	KindNode

	kindCount
)

// Kinds lists every resource kind in declaration order.
var Kinds = [...]Kind{KindModel, KindEmbeddingDb, KindPage, KindNode}

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindEmbeddingDb:
		return "embedding-db"
	case KindPage:
		return "page"
	case KindNode:
		return "node"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

// Resource is implemented by every value stored in the broker.
type Resource interface {
	ResourceKind() Kind
}

// Handle is an opaque reference to one live resource.
//
// Generation is bumped every time a slot is released, so a handle that
// outlives its resource never aliases a newer occupant of the same slot.
// Generation 0 is never issued, which keeps ID 0 permanently invalid.
type Handle struct {
	Kind       Kind
	Index      uint32
	Generation uint32
	Owned      bool
}

// ID packs the slot index and generation into the scalar seen by plugins.
func (h Handle) ID() uint64 {
	return uint64(h.Generation)<<32 | uint64(h.Index)
}

// FromID rebuilds a handle from the scalars supplied by a plugin.
func FromID(kind Kind, id uint64, owned bool) Handle {
	return Handle{
		Kind:       kind,
		Index:      uint32(id),
		Generation: uint32(id >> 32),
		Owned:      owned,
	}
}

// Borrow returns a non-releasing copy of h.
func (h Handle) Borrow() Handle {
	h.Owned = false
	return h
}

func (h Handle) String() string {
	own := "borrowed"
	if h.Owned {
		own = "owned"
	}
	return fmt.Sprintf("%s#%d.%d(%s)", h.Kind, h.Index, h.Generation, own)
}

// EventType identifies a resource lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  Resource
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
// Notifications are delivered after the broker lock has been released.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by resource values that need cleanup
// when released.
type Dropper interface {
	Drop()
}
