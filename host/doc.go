// Package host implements the plugin-facing side of the resource broker.
//
// An Adapter owns one broker and exposes create, use and drop operations for
// every resource kind in terms of plain values: numeric ids with an ownership
// bit, strings and float vectors. Nothing a plugin receives can be turned
// back into a host reference except through the broker.
//
// Ownership rules:
//
//   - every create operation returns an owned id
//   - use operations accept owned or borrowed ids and never release
//   - drop operations require an owned id; a borrowed id is an
//     ownership_violation, which the wasm boundary turns into a trap
//   - a stale id (released, or never issued) is not_found
//
// Models and page sources are slow. The adapter copies the model reference
// out of the broker and runs inference with no lock held; a second short
// section then applies the result.
package host
