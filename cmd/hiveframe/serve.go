// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hiveframe/hiveframe/internal/config"
	"github.com/hiveframe/hiveframe/internal/game"
	"github.com/hiveframe/hiveframe/internal/httpapi"
	"github.com/hiveframe/hiveframe/internal/inarow"
	"github.com/hiveframe/hiveframe/internal/logging"
	"github.com/hiveframe/hiveframe/internal/observability"
	"github.com/hiveframe/hiveframe/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd builds the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP game service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("http-addr", ":8000", "HTTP listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics listen address, empty to disable")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().Int("engine.rows", inarow.DefaultOptions.Rows, "board rows")
	cmd.Flags().Int("engine.cols", inarow.DefaultOptions.Cols, "board columns")
	cmd.Flags().Int("engine.win-length", inarow.DefaultOptions.WinLength, "cells in a row needed to win")
	cmd.Flags().Bool("reaper.enabled", false, "terminate idle sessions")
	cmd.Flags().Duration("reaper.interval", time.Minute, "idle sweep interval")
	cmd.Flags().Duration("reaper.max-idle", 30*time.Minute, "idle time before a session is terminated")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.SetDefault("hiveframe", version, cfg.LogFormat)
	logger := slog.Default()

	if cfg.DatabaseURL == "" {
		return errors.New("database URL is required (set --database-url or DATABASE_URL)")
	}

	frameStore, err := store.NewPostgresFrameStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer frameStore.Close()

	registry, err := game.NewRegistry(game.RegistryConfig{
		Store: frameStore,
		NewEngine: inarow.Factory(inarow.Options{
			Rows:      cfg.Engine.Rows,
			Cols:      cfg.Engine.Cols,
			WinLength: cfg.Engine.WinLength,
		}),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating registry: %w", err)
	}

	var metrics *observability.Metrics

	if cfg.MetricsAddr != "" {
		obs := observability.NewServer(cfg.MetricsAddr, registry, func() bool { return true })
		metrics = obs.Metrics()

		obsErrs, err := obs.Start()
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer stopObservability(obs, logger)

		go monitorServerErrors(ctx, stop, obsErrs, logger, "metrics")
		logger.Info("metrics server listening", "addr", obs.Addr())
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry(), registry)
	}

	if cfg.Reaper.Enabled {
		reaper, err := game.NewReaper(registry, cfg.Reaper.Interval, cfg.Reaper.MaxIdle, logger)
		if err != nil {
			return fmt.Errorf("creating reaper: %w", err)
		}
		go reaper.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)

	api, err := httpapi.NewServerWithLogger(registry, metrics, logger)
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrs <- err
		}
	}()
	go monitorServerErrors(ctx, stop, srvErrs, logger, "http")

	logger.Info("hiveframe listening", "addr", cfg.HTTPAddr, "version", version)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// monitorServerErrors cancels the run context when a background server fails.
func monitorServerErrors(ctx context.Context, stop context.CancelFunc, errs <-chan error, logger *slog.Logger, name string) {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			stop()
		}
	case <-ctx.Done():
	}
}

func stopObservability(obs *observability.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := obs.Stop(ctx); err != nil {
		logger.Error("stopping metrics server", "error", err)
	}
}
