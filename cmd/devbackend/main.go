// Package main runs a local stand-in for the staff records backend.
//
// Usage:
//
//	devbackend --addr :8000 --ready-after 5s
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kadrsp/importdesk/internal/devbackend"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "devbackend",
	Short: "Local stand-in for the staff records backend",
	Long: `devbackend serves POST /import/teachers, GET /api/teachers and
POST /api/upload-curriculum for local runs of importdesk.

Imported teachers appear --ready-after the import is accepted.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().String("addr", ":8000", "listen address")
	rootCmd.Flags().Duration("ready-after", 5*time.Second, "delay before imported teachers become visible")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	readyAfter, _ := cmd.Flags().GetDuration("ready-after")
	if readyAfter < 0 {
		return errors.New("--ready-after cannot be negative")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	backend := devbackend.New(
		devbackend.WithReadyAfter(readyAfter),
		devbackend.WithLogger(logger),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("devbackend listening", "addr", ln.Addr().String(), "ready_after", readyAfter.String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("devbackend: %w", err)
	}
	logger.Info("devbackend stopped")
	return nil
}
