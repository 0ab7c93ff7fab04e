package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jikku/phishsim/internal/config"
)

const Version = "v0.3.0"

// rootOptions holds global flags for all commands
type rootOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root command. Running it without a subcommand
// starts the server.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "phishsim",
		Short:         "Phishing simulation open tracker and credential capture server",
		Long:          "Records email opens through a tracking pixel and credentials submitted on a simulated login page, for authorised security-awareness campaigns.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Verbose && opts.Quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			return nil
		},
		RunE: serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultConfigPath, "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.Verbose, "verbose", false, "enable verbose logging")
	cmd.PersistentFlags().BoolVar(&opts.Quiet, "quiet", false, "quiet mode (errors only)")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig loads configuration and builds the logger that goes with it
func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.IsProduction(), opts.Verbose, opts.Quiet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newLogger builds a production (JSON) or development (console) logger
func newLogger(production, verbose, quiet bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if production {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	switch {
	case verbose:
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	return zcfg.Build()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "phishsim %s\n", Version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
