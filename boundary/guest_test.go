package boundary

import (
	"github.com/tetratelabs/wazero/api"
)

// Test guests are assembled directly in the binary format. A guest imports
// every host function, exports "call-<name>" trampolines with the same core
// signature, a memory, and a bump cabi_realloc whose heap starts at
// guestHeap.

const (
	guestPages = 1
	guestHeap  = 4096
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func wasmVec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

func (ft funcType) encode() []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint64(len(ft.params)))...)
	out = append(out, ft.params...)
	out = append(out, uleb(uint64(len(ft.results)))...)
	return append(out, ft.results...)
}

func (ft funcType) key() string {
	return string(ft.encode())
}

type guestBuilder struct {
	types   []funcType
	typeIdx map[string]int
}

func (b *guestBuilder) typeOf(ft funcType) int {
	if b.typeIdx == nil {
		b.typeIdx = map[string]int{}
	}
	if i, ok := b.typeIdx[ft.key()]; ok {
		return i
	}
	b.types = append(b.types, ft)
	b.typeIdx[ft.key()] = len(b.types) - 1
	return len(b.types) - 1
}

// buildGuest returns a guest module linked against the host module named
// module. withAlloc controls whether cabi_realloc is exported.
func buildGuest(module string, withAlloc bool) []byte {
	var b guestBuilder
	i32 := api.ValueTypeI32

	type imported struct {
		name    string
		typ     int
		nparams int
	}
	var imports []imported
	for i := range Functions {
		params, _, err := Functions[i].Signature()
		if err != nil {
			panic(err)
		}
		ti := b.typeOf(funcType{params: params, results: []api.ValueType{i32}})
		imports = append(imports, imported{Functions[i].Name, ti, len(params)})
	}
	reallocType := b.typeOf(funcType{params: []api.ValueType{i32, i32, i32, i32}, results: []api.ValueType{i32}})

	var typeSec [][]byte
	for _, ft := range b.types {
		typeSec = append(typeSec, ft.encode())
	}

	var importSec [][]byte
	for _, im := range imports {
		entry := append(wasmName(module), wasmName(im.name)...)
		entry = append(entry, 0x00)
		entry = append(entry, uleb(uint64(im.typ))...)
		importSec = append(importSec, entry)
	}

	// Defined functions: one trampoline per import, then cabi_realloc.
	var funcSec, codeSec, exportSec [][]byte
	for i, im := range imports {
		funcSec = append(funcSec, uleb(uint64(im.typ)))

		body := []byte{0x00} // no locals
		for p := 0; p < im.nparams; p++ {
			body = append(body, 0x20)
			body = append(body, uleb(uint64(p))...)
		}
		body = append(body, 0x10)
		body = append(body, uleb(uint64(i))...)
		body = append(body, 0x0b)
		codeSec = append(codeSec, append(uleb(uint64(len(body))), body...))

		exp := append(wasmName("call-"+im.name), 0x00)
		exp = append(exp, uleb(uint64(len(imports)+i))...)
		exportSec = append(exportSec, exp)
	}

	if withAlloc {
		funcSec = append(funcSec, uleb(uint64(reallocType)))
		// result = heap; heap = (heap + new_size + 7) & -8
		body := []byte{0x00,
			0x23, 0x00,
			0x23, 0x00,
			0x20, 0x03,
			0x6a,
			0x41}
		body = append(body, sleb(7)...)
		body = append(body, 0x6a, 0x41)
		body = append(body, sleb(-8)...)
		body = append(body, 0x71, 0x24, 0x00, 0x0b)
		codeSec = append(codeSec, append(uleb(uint64(len(body))), body...))

		exp := append(wasmName(CabiRealloc), 0x00)
		exp = append(exp, uleb(uint64(2*len(imports)))...)
		exportSec = append(exportSec, exp)
	}
	exportSec = append(exportSec, append(wasmName("memory"), 0x02, 0x00))

	memSec := [][]byte{append([]byte{0x00}, uleb(guestPages)...)}

	global := []byte{byte(i32), 0x01, 0x41}
	global = append(global, sleb(guestHeap)...)
	global = append(global, 0x0b)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, wasmSection(1, wasmVec(typeSec))...)
	out = append(out, wasmSection(2, wasmVec(importSec))...)
	out = append(out, wasmSection(3, wasmVec(funcSec))...)
	out = append(out, wasmSection(5, wasmVec(memSec))...)
	out = append(out, wasmSection(6, wasmVec([][]byte{global}))...)
	out = append(out, wasmSection(7, wasmVec(exportSec))...)
	out = append(out, wasmSection(10, wasmVec(codeSec))...)
	return out
}
