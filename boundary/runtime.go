package boundary

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/host"
)

// Config holds configuration for runtime creation.
type Config struct {
	// Module is the import module name of the host functions.
	// Empty means DefaultModule.
	Module string

	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// WASI instantiates wasi_snapshot_preview1 so guests built for WASI
	// can link.
	WASI bool

	Stdout io.Writer
	Stderr io.Writer
}

// Runtime is a wazero runtime with the host module instantiated.
type Runtime struct {
	rt      wazero.Runtime
	adapter *host.Adapter
	cfg     Config
}

// NewRuntime creates a runtime whose guests call into adapter.
func NewRuntime(ctx context.Context, adapter *host.Adapter, cfg *Config) (*Runtime, error) {
	r := &Runtime{adapter: adapter}
	if cfg != nil {
		r.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if r.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(r.cfg.MemoryLimitPages)
	}
	r.rt = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if r.cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.rt); err != nil {
			r.rt.Close(ctx)
			return nil, errors.Instantiation(fmt.Errorf("instantiate WASI: %w", err))
		}
	}
	if _, err := InstantiateHostModule(ctx, r.rt, adapter, r.cfg.Module); err != nil {
		r.rt.Close(ctx)
		return nil, err
	}
	return r, nil
}

// Adapter returns the adapter guests call into.
func (r *Runtime) Adapter() *host.Adapter {
	return r.adapter
}

// Load compiles and instantiates a guest module. Each guest is anonymous, so
// the same bytes can be loaded more than once.
func (r *Runtime) Load(ctx context.Context, wasmBytes []byte) (*Guest, error) {
	compiled, err := r.rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile guest", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	if r.cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(r.cfg.Stdout)
	}
	if r.cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(r.cfg.Stderr)
	}

	mod, err := r.rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(err)
	}
	Logger().Debug("guest loaded",
		zap.Int("exports", len(mod.ExportedFunctionDefinitions())),
		zap.Bool("memory", mod.Memory() != nil))
	return &Guest{mod: mod, compiled: compiled}, nil
}

// Close closes the runtime and every guest loaded into it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Guest is an instantiated plugin module.
type Guest struct {
	mod      api.Module
	compiled wazero.CompiledModule
}

// Export describes one exported guest function.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

func (e Export) String() string {
	return fmt.Sprintf("%s(%s) -> (%s)", e.Name, valueTypes(e.Params), valueTypes(e.Results))
}

func valueTypes(vts []api.ValueType) string {
	s := ""
	for i, vt := range vts {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(vt)
	}
	return s
}

// Exports lists exported functions sorted by name, excluding the allocator.
func (g *Guest) Exports() []Export {
	defs := g.mod.ExportedFunctionDefinitions()
	out := make([]Export, 0, len(defs))
	for name, def := range defs {
		if name == CabiRealloc {
			continue
		}
		out = append(out, Export{Name: name, Params: def.ParamTypes(), Results: def.ResultTypes()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes an exported function. A host function that hit an ownership
// violation aborts the call; the returned error then satisfies
// errors.IsOwnershipViolation.
func (g *Guest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Resource("export").
			Detail("%s", name).
			Build()
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return results, nil
}

// Memory returns the guest's linear memory, or nil if it exports none.
func (g *Guest) Memory() *GuestMemory {
	if mem := g.mod.Memory(); mem != nil {
		return NewGuestMemory(mem)
	}
	return nil
}

// Close releases the guest instance.
func (g *Guest) Close(ctx context.Context) error {
	err := g.mod.Close(ctx)
	if cerr := g.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
