package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadrsp/importdesk"
	"github.com/kadrsp/importdesk/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadDesk reads the config named by the --config flag and builds a desk.
func loadDesk(cmd *cobra.Command, logger *slog.Logger, extra ...importdesk.Option) (*importdesk.Desk, *config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := append(config.BuildOptions(cfg, logger), extra...)
	desk, err := importdesk.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create import desk: %w", err)
	}
	return desk, cfg, nil
}

// serveCmd starts the import page server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the import page",
	Long: `Start the local import page.

The server will:
  - Load configuration from the specified YAML file
  - Load the current teachers table from the backend
  - Serve the import page on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  importdesk serve -c config.yaml
  importdesk serve --config /etc/importdesk/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	desk, cfg, err := loadDesk(cmd, logger)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"backend", cfg.BackendURL,
		"headers", len(cfg.Headers),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.Poll.Interval.Duration().String(),
		"max_attempts", cfg.Poll.MaxAttempts,
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- desk.Serve(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
