// Package main provides the entry point for the video sampler HTTP server.
package main

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

	"github.com/maauso/video-sampler/internal/bootstrap"
	"github.com/maauso/video-sampler/internal/config"
	"github.com/maauso/video-sampler/internal/metrics"
	"github.com/maauso/video-sampler/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting video sampler API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("workers", cfg.Workers),
		slog.Duration("pipeline_timeout", cfg.PipelineTimeout),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.String("metrics_addr", cfg.MetricsAddr),
	)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	// Tasks are never cancelled once dequeued; shutdown drains the queue instead.
	deps.Start(context.Background())

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.StartServer(cfg.MetricsAddr, logger)
	}

	handlers := server.NewHandlers(deps.Batches, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("draining queued tasks", slog.Int("queued", deps.Queue.Len()))
	if err := deps.Drain(ctx); err != nil {
		logger.Warn("workers did not finish before shutdown deadline",
			slog.String("error", err.Error()),
		)
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped gracefully")
	return nil
}
