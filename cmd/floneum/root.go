package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nickjmiller/floneum/boundary"
	"github.com/nickjmiller/floneum/config"
	"github.com/nickjmiller/floneum/content"
	"github.com/nickjmiller/floneum/host"
	"github.com/nickjmiller/floneum/model"
	"github.com/nickjmiller/floneum/vectordb"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "floneum",
	Short: "Plugin host for sandboxed WebAssembly workflow nodes",
	Long: `floneum runs WebAssembly plugins that hold models, embedding databases,
pages and page nodes through numeric handles.

Example usage:
  floneum run plugin.wasm run        # Call an export of a plugin
  floneum abi --wit                  # Print the host interface as WIT
  floneum query -q "vector search"   # Embed local files and search them
  floneum inspect                    # Call host functions interactively`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		setLoggers(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "floneum.yaml", "config file")
}

// newLogger builds a zap logger from the logging section. Console output
// goes to stderr so command output stays clean.
func newLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch lc.Format {
	case "json":
		zc = zap.NewProductionConfig()
	default:
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	level := zapcore.InfoLevel
	if lc.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(strings.ToLower(lc.Level))
		if err != nil {
			return nil, err
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func setLoggers(l *zap.Logger) {
	vectordb.SetLogger(l.Named("vectordb"))
	model.SetLogger(l.Named("model"))
	content.SetLogger(l.Named("content"))
	boundary.SetLogger(l.Named("boundary"))
}

// newAdapter builds an adapter from the loaded configuration. extra options
// are applied last.
func newAdapter(extra ...func(o *host.Options)) (*host.Adapter, error) {
	fromCfg, err := host.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := append([]func(o *host.Options){fromCfg, func(o *host.Options) {
		o.Logger = logger.Named("host")
	}}, extra...)
	return host.New(opts...), nil
}
