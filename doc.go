// Package floneum is a plugin host that lets sandboxed WebAssembly plugins
// hold long-lived native resources through opaque numeric handles.
//
// # Architecture Overview
//
//	floneum/             Root package with guest Memory and Allocator interfaces
//	├── resource/        Handle broker: per-kind slot tables under one lock
//	├── vectordb/        Embedding database: lazy index plus document list
//	│   ├── flat/        Exact in-memory index
//	│   └── boltindex/   Index persisted in a BoltDB file
//	├── model/           Model resource, catalog and providers
//	├── content/         Page and node resources, page sources
//	├── host/            Adapter from numeric ids to typed broker operations
//	├── boundary/        wazero host module exposing the adapter to plugins
//	├── config/          YAML configuration
//	├── errors/          Structured error types
//	└── cmd/floneum/     Command line interface
//
// # Quick Start
//
// Run a plugin against the default configuration:
//
//	adapter := host.New()
//	defer adapter.Close()
//
//	rt, err := boundary.NewRuntime(ctx, adapter, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	guest, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := guest.Call(ctx, "run")
//
// # Handles
//
// A plugin never sees a host pointer. Every resource crosses the boundary as
// a 64-bit id (slot index in the low half, slot generation in the high half)
// plus an ownership bit. Ids are scoped to their kind: a model id and a page
// id may carry the same number. Releasing requires ownership; a stale id is
// reported as not found and never reaches a newer occupant of the slot.
//
// # Concurrency
//
// The broker has one reader/writer lock. Lookups run in parallel, mutations
// are exclusive across all kinds, and no callback under the lock blocks.
// Model inference and page fetching run after the model or source reference
// has been copied out of the broker.
package floneum
