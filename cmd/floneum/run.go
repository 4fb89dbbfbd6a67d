package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/boundary"
)

var (
	runWASI  bool
	runStats bool
)

var runCmd = &cobra.Command{
	Use:   "run <plugin.wasm> [export] [args...]",
	Short: "Load a plugin and call one of its exports",
	Long: `Load a WebAssembly plugin with the host module bound and call an export.
Arguments are parsed by the export's core parameter types. Without an export
name the exports are listed.

Examples:
  floneum run plugin.wasm            # List exports
  floneum run plugin.wasm run        # Call run()
  floneum run plugin.wasm add 1 2    # Call add(1, 2)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlugin,
}

func init() {
	runCmd.Flags().BoolVar(&runWASI, "wasi", true, "link wasi_snapshot_preview1")
	runCmd.Flags().BoolVar(&runStats, "stats", false, "print live resources after the call")
	rootCmd.AddCommand(runCmd)
}

func runPlugin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	adapter, err := newAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	rt, err := boundary.NewRuntime(ctx, adapter, &boundary.Config{
		Module:           cfg.Boundary.Module,
		MemoryLimitPages: cfg.Boundary.MemoryLimitPages,
		WASI:             runWASI,
		Stdout:           cmd.OutOrStdout(),
		Stderr:           cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	guest, err := rt.Load(ctx, data)
	if err != nil {
		return err
	}
	defer guest.Close(ctx)

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		fmt.Fprintf(out, "Exported functions:\n")
		for _, e := range guest.Exports() {
			fmt.Fprintf(out, "  %s\n", e)
		}
		return nil
	}

	name := args[1]
	var export *boundary.Export
	for _, e := range guest.Exports() {
		if e.Name == name {
			export = &e
			break
		}
	}
	if export == nil {
		return fmt.Errorf("export %q not found", name)
	}
	params, err := parseCoreArgs(export.Params, args[2:])
	if err != nil {
		return err
	}

	logger.Debug("calling export", zap.String("name", name), zap.Int("params", len(params)))
	results, err := guest.Call(ctx, name, params...)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Fprintln(out, formatCoreValue(export.Results[i], r))
	}

	if runStats {
		for kind, n := range adapter.Stats() {
			fmt.Fprintf(out, "%-12s %d\n", kind, n)
		}
	}
	return nil
}

func parseCoreArgs(types []api.ValueType, args []string) ([]uint64, error) {
	if len(args) != len(types) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(types), len(args))
	}
	out := make([]uint64, len(args))
	for i, s := range args {
		switch types[i] {
		case api.ValueTypeI32:
			v, err := strconv.ParseInt(s, 0, 64)
			if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
				return nil, fmt.Errorf("argument %d: invalid i32 %q", i, s)
			}
			out[i] = api.EncodeU32(uint32(v))
		case api.ValueTypeI64:
			if v, err := strconv.ParseInt(s, 0, 64); err == nil {
				out[i] = api.EncodeI64(v)
			} else if u, uerr := strconv.ParseUint(s, 0, 64); uerr == nil {
				out[i] = u
			} else {
				return nil, fmt.Errorf("argument %d: invalid i64 %q", i, s)
			}
		case api.ValueTypeF32:
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: invalid f32 %q", i, s)
			}
			out[i] = api.EncodeF32(float32(v))
		case api.ValueTypeF64:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: invalid f64 %q", i, s)
			}
			out[i] = api.EncodeF64(v)
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %s", i, api.ValueTypeName(types[i]))
		}
	}
	return out, nil
}

func formatCoreValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	default:
		return strconv.FormatUint(v, 10)
	}
}
