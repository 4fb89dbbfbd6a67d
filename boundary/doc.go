// Package boundary exposes the host adapter to sandboxed WebAssembly
// plugins through a wazero host module.
//
// Every host function takes core wasm values only. A resource handle is
// passed as (id i64, owned i32), a string or list as (ptr i32, len i32)
// into guest memory, and a result that needs memory is written through a
// trailing retptr after being allocated with the guest's cabi_realloc. Each
// function returns an i32 Status.
//
// Releasing a resource the guest does not own is not reported as a status:
// the host function panics and wazero turns the panic into a trap that
// aborts the guest call.
//
// Functions lists the ABI and WIT renders it as a WIT interface.
package boundary
