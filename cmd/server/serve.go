package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/config"
	"github.com/jikku/phishsim/internal/database"
	"github.com/jikku/phishsim/internal/eventlog"
	"github.com/jikku/phishsim/internal/handlers"
	"github.com/jikku/phishsim/internal/notifier"
	"github.com/jikku/phishsim/internal/security"
	"github.com/jikku/phishsim/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tracking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if port != "" {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			return runServer(cmd, cfg, logger, opts.ConfigPath)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "server port (overrides config)")
	return cmd
}

func runServer(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "           phishsim %s - Starting Up\n", Version)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Environment:      %s\n", cfg.Server.Env)
	fmt.Fprintf(out, "  Port:             %s\n", cfg.Server.Port)
	fmt.Fprintf(out, "  Opens log:        %s\n", cfg.Logs.OpensPath)
	fmt.Fprintf(out, "  Credentials log:  %s\n", cfg.Logs.CredentialsPath)
	fmt.Fprintf(out, "  Redirect:         %s\n", cfg.Capture.RedirectURL)
	fmt.Fprintf(out, "  Config File:      %s\n", config.ExpandPath(configPath))
	fmt.Fprintln(out)

	if err := security.PrepareEventLogs(logger, cfg.Logs.OpensPath, cfg.Logs.CredentialsPath); err != nil {
		return err
	}

	deps := handlers.Deps{
		Opens:       eventlog.NewFileSink(cfg.Logs.OpensPath),
		Credentials: eventlog.NewFileSink(cfg.Logs.CredentialsPath),
		RedirectURL: cfg.Capture.RedirectURL,
		Logger:      logger,
	}

	if cfg.MirrorEnabled() {
		store, err := database.Open(cfg.Database.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize event mirror: %w", err)
		}
		defer store.Close()
		security.EnsureDatabasePermissions(cfg.Database.Path, logger)
		deps.Store = store
	}

	if cfg.NotificationsEnabled() {
		deps.Notifier = notifier.New(cfg.Ntfy, logger)
		logger.Info("ntfy notifications enabled", zap.String("topic", cfg.Ntfy.Topic))
	}

	router := server.NewRouter(handlers.New(deps), server.Options{
		Production:  cfg.IsProduction(),
		TrustProxy:  cfg.Server.TrustProxy,
		LandingDir:  cfg.Server.LandingDir,
		RedirectURL: cfg.Capture.RedirectURL,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Server.AutoTLS {
		tlsConfig, err := autoTLS(cfg, configPath, logger)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Bool("tls", srv.TLSConfig != nil))
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// autoTLS obtains certificates for the configured domain through ACME.
// Certificates are stored next to the config file.
func autoTLS(cfg *config.Config, configPath string, logger *zap.Logger) (*tls.Config, error) {
	certDir := filepath.Join(filepath.Dir(config.ExpandPath(configPath)), "certs")

	certmagic.DefaultACME.Agreed = true
	certmagic.Default.Storage = &certmagic.FileStorage{Path: certDir}
	certmagic.Default.Logger = logger.Named("certmagic")

	tc, err := certmagic.TLS([]string{cfg.Server.Domain})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", cfg.Server.Domain, err)
	}

	logger.Info("automatic TLS enabled", zap.String("domain", cfg.Server.Domain), zap.String("storage", certDir))
	return tc, nil
}
