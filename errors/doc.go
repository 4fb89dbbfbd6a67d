// Package errors provides structured error types for the plugin host.
//
// Errors are categorized by Phase (which component raised the error) and Kind
// (error category). The Error type carries a human-readable detail, the
// offending resource kind and id where known, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBroker, errors.KindNotFound).
//		Resource("embedding-db").
//		ID(id).
//		Detail("it may have been already dropped").
//		Build()
//
// Or use convenience constructors for the common failures:
//
//	err := errors.NotFound(errors.PhaseBroker, "embedding-db", id)
//	err := errors.ConstructionFailure(errors.PhaseStore, "similarity index", cause)
//
// The four failure classes surfaced to plugins are:
//
//	not_found            - handle stale, released, or never valid
//	ownership_violation  - release attempted through a borrowed handle
//	construction_failure - lazily built value failed to initialize (cached)
//	index_failure        - add/query failed on a healthy index
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
