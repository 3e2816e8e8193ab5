// Package cli implements the fern command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	EnvFile string
	Verbose bool

	// loadConfig and newLogger are replaced in tests
	loadConfig func(envFile string) (config.Config, error)
	newLogger  func(cfg config.Config, verbose bool) (ectologger.Logger, func(), error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fern CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		loadConfig: func(envFile string) (config.Config, error) { return config.Load(envFile) },
		newLogger:  defaultLogger,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fern",
		Short: "Resolve stable codes and assemble sync credentials",
		Long: `fern resolves human-readable stable codes (clinic, provider and location codes)
into current entity ids through the remote data service, keeps the external
mapping registry, and assembles credential bundles for sync jobs.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ectolinq.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional env file read before the environment")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewAssembleCommand(opts))
	cmd.AddCommand(NewDetectCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewMappingCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func defaultLogger(cfg config.Config, verbose bool) (ectologger.Logger, func(), error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Pretty: cfg.PrettyLogs})
}

// withApp loads configuration, starts the configured services and runs fn
func withApp(ctx context.Context, opts *RootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := opts.loadConfig(opts.EnvFile)
	if err != nil {
		return err
	}
	logger, flush, err := opts.newLogger(cfg, opts.Verbose)
	if err != nil {
		return err
	}
	defer flush()

	a := app.New(cfg, logger)
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("Failed to stop services cleanly")
		}
	}()

	return fn(ctx, a)
}

// render writes value as indented JSON or through the text renderer
func render(w io.Writer, opts *RootOptions, value any, text func(w io.Writer) error) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	return text(w)
}
