// Command cache-server runs the two-tier cache as a standalone process and
// exposes its diagnostics and operator actions over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/ais-cache/internal/config"
	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/Sternrassler/ais-cache/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Configuration from environment
	cfg, cfgErr := config.Load()

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger(logging.ComponentServer)
	if cfgErr != nil {
		logger.Warn().Err(cfgErr).Msg("Invalid configuration values ignored, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache
	manager := cache.NewManager(cfg.Cache(), logging.NewLogger(logging.ComponentCache))
	manager.Start(ctx)

	// HTTP Server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(manager, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("key_prefix", manager.Keys().Prefix).
			Msg("Starting cache server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed")
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
		exitCode = 1
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Cache shutdown failed")
		exitCode = 1
	}

	logger.Info().Msg("Cache server stopped")
	return exitCode
}
