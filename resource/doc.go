// Package resource provides the handle broker that lets sandboxed plugins
// refer to host-side values.
//
// Plugins never hold real references. They hold a Handle: a numeric id plus
// an ownership flag, identifying one live value of a known Kind. The Broker
// keeps one reusable slot array per kind behind a single table-wide
// reader/writer lock.
//
// # Resource Lifecycle
//
//	Insert   - stores a value, returns an owned handle
//	View     - shared access; runs in parallel with other views
//	Update   - exclusive access; serialized with every other operation
//	Release  - owner-only; frees the slot for reuse
//
// Releasing through a borrowed handle is a contract violation and returns an
// ownership_violation error without touching the table. Accessing a stale or
// released handle returns not_found; it never crashes and never reaches a
// newer value that reused the slot, because every release bumps the slot's
// generation and the generation is part of the handle's id.
//
// # Typed Access
//
// Table wraps the broker for one kind:
//
//	broker := resource.NewBroker()
//	dbs := resource.NewTable[*vectordb.Store](broker, resource.KindEmbeddingDb)
//
//	h, err := dbs.Insert(store)
//	err = dbs.Update(h, func(s *vectordb.Store) error {
//	    return s.AddEmbedding(vec, doc)
//	})
//	_, err = dbs.Release(h)
//
// Callbacks passed to View and Update run while the broker lock is held. They
// must do O(1) work and never block; slow work belongs before Insert or after
// Get has copied the reference out.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	broker.Subscribe(observer) // receives EventCreated and EventDropped
//
// Observers are notified after the lock is released.
//
// # Memory Management
//
// Resources are not garbage collected on behalf of plugins. The owner must
// release what it creates. Close releases everything at host shutdown and
// calls Drop on values that implement Dropper.
package resource
