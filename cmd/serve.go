// =============================================================================
// Sales Normalizer - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which accepts vendor files as
// multipart uploads on POST /v1/uploads.
//
// The server stops gracefully on SIGINT or SIGTERM, letting in-flight
// uploads finish for up to 30 seconds.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/converter"
	"github.com/ginjaninja78/sales-normalizer/internal/server"
)

// listenAddr overrides server.addr from the main config.
var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP upload endpoint",
	Long: `Serve starts an HTTP server that normalizes uploaded vendor files.

Endpoints:
  GET  /healthz     Liveness and registered vendor ids
  POST /v1/uploads  Multipart upload: file, vendor, [reseller_id, month, year, upload_id]

Batches are written to the database when database_url is configured;
otherwise only the summary is returned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: server.addr from config)")
}

func runServe(ctx context.Context) error {
	mainConfig, vendorConfigs, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		mainConfig.Server.Addr = listenAddr
	}

	store, err := openStore(ctx, mainConfig)
	if err != nil {
		return err
	}
	var sink converter.Sink
	if store != nil {
		defer store.Close()
		sink = store
	} else {
		slog.Warn("no database configured, uploads will not be stored")
	}

	engine, err := newEngine(mainConfig, store)
	if err != nil {
		return err
	}

	srv := server.New(engine, vendorConfigs, sink, mainConfig.Server)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
