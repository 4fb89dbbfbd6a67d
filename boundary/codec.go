package boundary

import (
	"encoding/binary"
	"math"

	"github.com/nickjmiller/floneum"
	"github.com/nickjmiller/floneum/errors"
)

// maxListLen caps element counts read from the guest so a corrupt length
// cannot make the host allocate gigabytes before the bounds check fails.
const maxListLen = 1 << 24

// Codec moves arguments and results across guest linear memory.
//
// Strings are (ptr, len) with len in bytes. Vectors are (ptr, len) of
// little-endian f32 with len in elements. Lists of strings or vectors are
// (ptr, len) of consecutive [ptr u32, len u32] pairs. Results are placed in
// freshly allocated guest memory and their (ptr, len) is stored at retptr.
type Codec struct {
	mem   floneum.Memory
	alloc floneum.Allocator
}

// NewCodec returns a codec over mem. alloc may be nil when only reads and
// scalar writes are needed.
func NewCodec(mem floneum.Memory, alloc floneum.Allocator) *Codec {
	return &Codec{mem: mem, alloc: alloc}
}

func checkLen(n, elemSize uint32) (uint32, error) {
	if n > maxListLen {
		return 0, errors.InvalidInput(errors.PhaseBoundary, "list too long")
	}
	size := uint64(n) * uint64(elemSize)
	if size > math.MaxUint32 {
		return 0, errors.InvalidInput(errors.PhaseBoundary, "list too long")
	}
	return uint32(size), nil
}

// ReadString copies a string out of guest memory.
func (c *Codec) ReadString(ptr, n uint32) (string, error) {
	if n == 0 {
		return "", nil
	}
	data, err := c.mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadVector copies n f32 values out of guest memory.
func (c *Codec) ReadVector(ptr, n uint32) ([]float32, error) {
	size, err := checkLen(n, 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float32{}, nil
	}
	data, err := c.mem.Read(ptr, size)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func (c *Codec) readPairs(ptr, n uint32) ([][2]uint32, error) {
	size, err := checkLen(n, 8)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	data, err := c.mem.Read(ptr, size)
	if err != nil {
		return nil, err
	}
	pairs := make([][2]uint32, n)
	for i := range pairs {
		pairs[i][0] = binary.LittleEndian.Uint32(data[i*8:])
		pairs[i][1] = binary.LittleEndian.Uint32(data[i*8+4:])
	}
	return pairs, nil
}

// ReadStrings reads a list<string>.
func (c *Codec) ReadStrings(ptr, n uint32) ([]string, error) {
	pairs, err := c.readPairs(ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		if out[i], err = c.ReadString(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadVectors reads a list<list<f32>>.
func (c *Codec) ReadVectors(ptr, n uint32) ([][]float32, error) {
	pairs, err := c.readPairs(ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(pairs))
	for i, p := range pairs {
		if out[i], err = c.ReadVector(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteU64 stores a scalar result at retptr.
func (c *Codec) WriteU64(retptr uint32, v uint64) error {
	return c.mem.WriteU64(retptr, v)
}

// WriteBool stores a bool result as one byte at retptr.
func (c *Codec) WriteBool(retptr uint32, v bool) error {
	var b byte
	if v {
		b = 1
	}
	return c.mem.Write(retptr, []byte{b})
}

// place copies data into a new guest allocation. An empty payload is not
// allocated; its pointer is align, which is non-null and aligned.
func (c *Codec) place(data []byte, align uint32) (uint32, error) {
	if len(data) == 0 {
		return align, nil
	}
	if c.alloc == nil {
		return 0, errors.Unsupported(errors.PhaseBoundary, "guest allocator not available")
	}
	ptr, err := c.alloc.Alloc(uint32(len(data)), align)
	if err != nil {
		return 0, err
	}
	if err := c.mem.Write(ptr, data); err != nil {
		c.alloc.Free(ptr, uint32(len(data)), align)
		return 0, err
	}
	return ptr, nil
}

func (c *Codec) writePair(retptr, ptr, n uint32) error {
	if err := c.mem.WriteU32(retptr, ptr); err != nil {
		return err
	}
	return c.mem.WriteU32(retptr+4, n)
}

// WriteString places s in guest memory and stores (ptr, len) at retptr.
func (c *Codec) WriteString(retptr uint32, s string) error {
	if len(s) > maxListLen {
		return errors.InvalidInput(errors.PhaseBoundary, "string too long")
	}
	ptr, err := c.place([]byte(s), 1)
	if err != nil {
		return err
	}
	return c.writePair(retptr, ptr, uint32(len(s)))
}

// WriteVector places v in guest memory and stores (ptr, len) at retptr.
func (c *Codec) WriteVector(retptr uint32, v []float32) error {
	if len(v) > maxListLen {
		return errors.InvalidInput(errors.PhaseBoundary, "vector too long")
	}
	data := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	ptr, err := c.place(data, 4)
	if err != nil {
		return err
	}
	return c.writePair(retptr, ptr, uint32(len(v)))
}

// WriteIDs places a list<u64> in guest memory and stores (ptr, len) at retptr.
func (c *Codec) WriteIDs(retptr uint32, ids []uint64) error {
	if len(ids) > maxListLen {
		return errors.InvalidInput(errors.PhaseBoundary, "list too long")
	}
	data := make([]byte, len(ids)*8)
	for i, id := range ids {
		binary.LittleEndian.PutUint64(data[i*8:], id)
	}
	ptr, err := c.place(data, 8)
	if err != nil {
		return err
	}
	return c.writePair(retptr, ptr, uint32(len(ids)))
}

// WriteStrings places every string and then the pair array. On failure the
// allocations made so far are freed.
func (c *Codec) WriteStrings(retptr uint32, ss []string) error {
	if len(ss) > maxListLen {
		return errors.InvalidInput(errors.PhaseBoundary, "list too long")
	}
	type placed struct{ ptr, n uint32 }
	done := make([]placed, 0, len(ss))
	release := func() {
		for _, p := range done {
			if p.n > 0 {
				c.alloc.Free(p.ptr, p.n, 1)
			}
		}
	}

	pairs := make([]byte, len(ss)*8)
	for i, s := range ss {
		ptr, err := c.place([]byte(s), 1)
		if err != nil {
			release()
			return err
		}
		done = append(done, placed{ptr, uint32(len(s))})
		binary.LittleEndian.PutUint32(pairs[i*8:], ptr)
		binary.LittleEndian.PutUint32(pairs[i*8+4:], uint32(len(s)))
	}

	ptr, err := c.place(pairs, 4)
	if err != nil {
		release()
		return err
	}
	return c.writePair(retptr, ptr, uint32(len(ss)))
}
