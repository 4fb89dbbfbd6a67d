package boundary

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/nickjmiller/floneum"
	"github.com/nickjmiller/floneum/errors"
)

var (
	_ floneum.Memory      = (*GuestMemory)(nil)
	_ floneum.MemorySizer = (*GuestMemory)(nil)
)

// GuestMemory wraps a guest's exported linear memory.
type GuestMemory struct {
	mem api.Memory
}

// NewGuestMemory wraps mem.
func NewGuestMemory(mem api.Memory) *GuestMemory {
	return &GuestMemory{mem: mem}
}

// Read returns a view of length bytes at offset. The slice aliases guest
// memory and is invalidated by the next guest allocation.
func (m *GuestMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseBoundary, offset, length)
	}
	return data, nil
}

func (m *GuestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, uint32(len(data)))
	}
	return nil
}

func (m *GuestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 4)
	}
	return v, nil
}

func (m *GuestMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 8)
	}
	return v, nil
}

func (m *GuestMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 4)
	}
	return nil
}

func (m *GuestMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 8)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *GuestMemory) Size() uint32 {
	return m.mem.Size()
}
