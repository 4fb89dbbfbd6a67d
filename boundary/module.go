package boundary

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum"
	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/host"
)

// DefaultModule is the import module name guests link against.
const DefaultModule = "floneum:plugin/host"

// HostModule binds every function in Functions onto a wazero host module
// named name. The module is compiled but not instantiated.
func HostModule(r wazero.Runtime, adapter *host.Adapter, name string) (wazero.HostModuleBuilder, error) {
	if name == "" {
		name = DefaultModule
	}
	b := r.NewHostModuleBuilder(name)
	for i := range Functions {
		fn := &Functions[i]
		params, names, err := fn.Signature()
		if err != nil {
			return nil, errors.Registration(name, fn.Name, err)
		}
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(bind(adapter, fn, len(params)), params, []api.ValueType{api.ValueTypeI32}).
			WithParameterNames(names...).
			WithResultNames("status").
			Export(fn.Name)
	}
	return b, nil
}

// InstantiateHostModule instantiates the host module in r.
func InstantiateHostModule(ctx context.Context, r wazero.Runtime, adapter *host.Adapter, name string) (api.Module, error) {
	b, err := HostModule(r, adapter, name)
	if err != nil {
		return nil, err
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return mod, nil
}

// bind adapts fn to wazero's stack-based calling convention. The calling
// guest's memory and cabi_realloc are resolved per call.
func bind(adapter *host.Adapter, fn *Function, nparams int) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		log := Logger()

		mem := mod.Memory()
		if mem == nil {
			log.Warn("guest exports no memory", zap.String("func", fn.Name))
			stack[0] = api.EncodeU32(uint32(StatusInternal))
			return
		}

		var alloc floneum.Allocator
		if ga, err := NewGuestAllocator(ctx, mod); err == nil {
			alloc = ga
		} else if fn.Result != "" {
			log.Debug("guest allocator unavailable", zap.String("func", fn.Name), zap.Error(err))
		}

		codec := NewCodec(NewGuestMemory(mem), alloc)
		err := invoke(ctx, adapter, fn, codec, stack, nparams)
		checkNotOwnershipViolation(fn.Name, err)

		status := StatusOf(err)
		if err != nil {
			log.Debug("host call failed",
				zap.String("func", fn.Name),
				zap.Stringer("status", status),
				zap.Error(err))
		}
		stack[0] = api.EncodeU32(uint32(status))
	}
}

func invoke(ctx context.Context, adapter *host.Adapter, fn *Function, codec *Codec, stack []uint64, nparams int) error {
	args, err := decodeArgs(fn, codec, stack)
	if err != nil {
		return err
	}
	result, err := fn.Invoke(ctx, adapter, args)
	if err != nil || fn.Result == "" {
		return err
	}

	retptr := api.DecodeU32(stack[nparams-1])
	if err := encodeResult(fn, codec, retptr, result); err != nil {
		// the guest never saw these ids
		for _, id := range created(fn, result) {
			_ = fn.release(adapter, id)
		}
		return err
	}
	return nil
}
