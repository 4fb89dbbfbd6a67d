package boundary

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum"
	"github.com/nickjmiller/floneum/errors"
)

// CabiRealloc is the guest export used to place results in guest memory.
const CabiRealloc = "cabi_realloc"

var _ floneum.Allocator = (*GuestAllocator)(nil)

// GuestAllocator allocates through a guest's cabi_realloc export
// (old_ptr, old_size, align, new_size) -> ptr.
type GuestAllocator struct {
	ctx   context.Context
	fn    api.Function
	stack [4]uint64
}

// NewGuestAllocator returns an allocator for mod, or an error when mod does
// not export cabi_realloc.
func NewGuestAllocator(ctx context.Context, mod api.Module) (*GuestAllocator, error) {
	fn := mod.ExportedFunction(CabiRealloc)
	if fn == nil {
		return nil, errors.Unsupported(errors.PhaseBoundary, "guest does not export "+CabiRealloc)
	}
	return &GuestAllocator{ctx: ctx, fn: fn}, nil
}

func (a *GuestAllocator) Alloc(size, align uint32) (uint32, error) {
	a.stack = [4]uint64{0, 0, uint64(align), uint64(size)}
	if err := a.fn.CallWithStack(a.ctx, a.stack[:]); err != nil {
		return 0, errors.New(errors.PhaseBoundary, errors.KindOutOfBounds).
			Detail("%s(%d, %d)", CabiRealloc, size, align).
			Cause(err).
			Build()
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.New(errors.PhaseBoundary, errors.KindOutOfBounds).
			Detail("%s returned null for %d bytes", CabiRealloc, size).
			Build()
	}
	return ptr, nil
}

// Free shrinks an allocation to zero bytes. Failures are logged; a guest that
// cannot free leaks into its own memory only.
func (a *GuestAllocator) Free(ptr, size, align uint32) {
	a.stack = [4]uint64{uint64(ptr), uint64(size), uint64(align), 0}
	if err := a.fn.CallWithStack(a.ctx, a.stack[:]); err != nil {
		Logger().Warn("guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
