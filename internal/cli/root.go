// Package cli defines the command-line interface for the echoview tool:
// rendering templates from the shell and previewing a templates directory in
// a browser.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/autarch/echoview/internal/logging"
	"github.com/autarch/echoview/pkg/config"
	"github.com/autarch/echoview/pkg/engine/gormloader"
	"github.com/autarch/echoview/pkg/engine/pongo2engine"
	"github.com/autarch/echoview/pkg/view"
)

// defaultConfigPath is where commands look for a config file unless --config
// points elsewhere.
const defaultConfigPath = "echoview.yaml"

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	LogLevel   logging.Level
}

// Execute builds the root command, runs it with the provided args and
// logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		ConfigPath: defaultConfigPath,
		LogLevel:   logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and
// subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echoview",
		Short: "echoview renders pongo2 templates the way an Echo application would",
		Long: "echoview is the command-line companion to the echoview view layer. It renders\n" +
			"templates with the same engine, filters, and data rules the library applies\n" +
			"inside an Echo application, and previews a templates directory over HTTP.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := logging.ParseLevel(cmd.Flag("log-level").Value.String())
			opts.LogLevel = level
			logger = logging.NewLogger(os.Stderr, level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "Path to the echoview.yaml configuration file")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRenderCommand(opts),
		newServeCommand(opts),
		newInitCommand(opts),
	)

	return cmd
}

// loadConfig layers the config file (when present) and ECHOVIEW_* variables
// over the defaults. A --config path other than the default must exist.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	case errors.Is(statErr, fs.ErrNotExist):
		if path != defaultConfigPath {
			return cfg, fmt.Errorf("config file %q not found", path)
		}
	default:
		return cfg, fmt.Errorf("stat config %q: %w", path, statErr)
	}

	return config.FromEnv(cfg)
}

// buildView constructs a view from cfg the way echoview.FromConfig does,
// with the CLI logger attached to the view and the template store.
func buildView(cfg config.Config, logger *slog.Logger, extra ...view.Option) (*view.View, error) {
	opts := cfg.Options()

	if cfg.DatabaseDSN != "" {
		store, err := gormloader.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open template store: %w", err)
		}
		opts = append(opts, view.WithEngineOptions(pongo2engine.WithLoader(store)))
	}
	opts = append(opts, view.WithLogger(logger))

	return view.New(append(opts, extra...)...)
}

// loggerKey is a private context key used to store a logger in command
// contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a
// default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
