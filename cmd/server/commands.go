package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/config"
	"github.com/jikku/phishsim/internal/database"
	"github.com/jikku/phishsim/internal/models"
	"github.com/jikku/phishsim/internal/report"
)

// newInitCommand writes a default config file for editing
func newInitCommand(opts *rootOptions) *cobra.Command {
	var redirectURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommand(cmd.OutOrStdout(), config.ExpandPath(opts.ConfigPath), redirectURL, force)
		},
	}

	cmd.Flags().StringVar(&redirectURL, "redirect", "", "redirect destination after credential capture")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func initCommand(out io.Writer, configPath, redirectURL string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.CreateDefaultConfig()
	if redirectURL != "" {
		cfg.Capture.RedirectURL = redirectURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.SaveToFile(cfg, configPath); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration created")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file:  %s\n", configPath)
	fmt.Fprintf(out, "Redirect:     %s\n", cfg.Capture.RedirectURL)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To start the server:")
	fmt.Fprintf(out, "  phishsim --config %s\n", configPath)
	return nil
}

// newReportCommand builds the per-recipient CSV campaign report
func newReportCommand(opts *rootOptions) *cobra.Command {
	var gophishPath, outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a per-recipient CSV report from the event logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.OpenFile(config.ExpandPath(outPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := report.Generate(report.Sources{
				OpensPath:       cfg.Logs.OpensPath,
				CredentialsPath: cfg.Logs.CredentialsPath,
				GophishPath:     config.ExpandPath(gophishPath),
			}, w, logger)
			if err != nil {
				return err
			}

			logger.Info("report written", zap.Int("recipients", n), zap.String("out", outPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&gophishPath, "gophish", "", "GoPhish JSON event export to merge")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV file (default stdout)")
	return cmd
}

// newStatusCommand prints configuration and event counts
func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and recorded event counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return statusCommand(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
		},
	}
}

func statusCommand(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintf(out, "Environment:      %s\n", cfg.Server.Env)
	fmt.Fprintf(out, "Port:             %s\n", cfg.Server.Port)
	fmt.Fprintf(out, "Redirect:         %s\n", cfg.Capture.RedirectURL)

	for _, lf := range []struct {
		label string
		path  string
	}{
		{"Opens log:", cfg.Logs.OpensPath},
		{"Credentials log:", cfg.Logs.CredentialsPath},
	} {
		n, err := countLines(lf.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(out, "%-17s %s (not created yet)\n", lf.label, lf.path)
		case err != nil:
			return fmt.Errorf("failed to read %s: %w", lf.path, err)
		default:
			fmt.Fprintf(out, "%-17s %s (%d events)\n", lf.label, lf.path, n)
		}
	}

	if !cfg.MirrorEnabled() {
		fmt.Fprintln(out, "Event mirror:     disabled")
		return nil
	}

	store, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open event mirror: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	counts, err := store.CountByKind(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Event mirror:     %s (opens: %d, credentials: %d)\n",
		cfg.Database.Path, counts[models.KindOpen], counts[models.KindCredentials])
	return nil
}

// countLines counts newline-terminated lines plus a trailing partial one
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	partial := false
	buf := make([]byte, 32*1024)
	for {
		c, err := f.Read(buf)
		if c > 0 {
			n += bytes.Count(buf[:c], []byte{'\n'})
			partial = buf[c-1] != '\n'
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if partial {
		n++
	}
	return n, nil
}
