package boundary

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/nickjmiller/floneum/host"
)

// decodeArgs reads fn's parameters from the core value stack in declaration
// order, dereferencing guest memory for strings and lists.
func decodeArgs(fn *Function, codec *Codec, stack []uint64) ([]any, error) {
	args := make([]any, len(fn.Params))
	pos := 0
	next := func() uint64 {
		v := stack[pos]
		pos++
		return v
	}
	pair := func() (uint32, uint32) {
		ptr := api.DecodeU32(next())
		n := api.DecodeU32(next())
		return ptr, n
	}

	for i, p := range fn.Params {
		var err error
		switch p.Type {
		case handleName:
			id := next()
			args[i] = host.ID{ID: id, Owned: api.DecodeU32(next()) != 0}
		case "u32":
			args[i] = api.DecodeU32(next())
		case "string":
			args[i], err = codec.ReadString(pair())
		case "list<f32>":
			args[i], err = codec.ReadVector(pair())
		case "list<string>":
			args[i], err = codec.ReadStrings(pair())
		case "list<list<f32>>":
			args[i], err = codec.ReadVectors(pair())
		default:
			return nil, fmt.Errorf("%s: unsupported parameter type %s", fn.Name, p.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return args, nil
}

// encodeResult writes result through retptr according to fn.Result.
func encodeResult(fn *Function, codec *Codec, retptr uint32, result any) error {
	switch fn.Result {
	case "u64":
		return codec.WriteU64(retptr, result.(host.ID).ID)
	case "bool":
		return codec.WriteBool(retptr, result.(bool))
	case "string":
		return codec.WriteString(retptr, result.(string))
	case "list<f32>":
		return codec.WriteVector(retptr, result.([]float32))
	case "list<string>":
		return codec.WriteStrings(retptr, result.([]string))
	case "list<u64>":
		ids := result.([]host.ID)
		raw := make([]uint64, len(ids))
		for i, id := range ids {
			raw[i] = id.ID
		}
		return codec.WriteIDs(retptr, raw)
	default:
		return fmt.Errorf("%s: unsupported result type %s", fn.Name, fn.Result)
	}
}

// created returns the handles in result that fn made for the caller.
func created(fn *Function, result any) []host.ID {
	if fn.release == nil {
		return nil
	}
	switch v := result.(type) {
	case host.ID:
		return []host.ID{v}
	case []host.ID:
		return v
	}
	return nil
}
