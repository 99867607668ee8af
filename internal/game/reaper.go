// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Reaper periodically force-terminates frames with no activity for
// longer than the configured idle duration. It is an external policy on
// top of the registry: the registry itself never removes or expires a
// frame.
type Reaper struct {
	registry *Registry
	interval time.Duration
	maxIdle  time.Duration
	logger   *slog.Logger
}

// NewReaper creates a reaper sweeping at the given interval. Both
// durations must be positive.
func NewReaper(registry *Registry, interval, maxIdle time.Duration, logger *slog.Logger) (*Reaper, error) {
	if registry == nil {
		return nil, oops.Errorf("registry is required")
	}
	if interval <= 0 || maxIdle <= 0 {
		return nil, oops.Errorf("reaper interval and max idle must be positive")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{
		registry: registry,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
	}, nil
}

// Run sweeps until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep force-terminates every non-completed frame idle beyond the
// configured duration and returns how many were terminated.
func (r *Reaper) Sweep(ctx context.Context) int {
	reaped := 0
	for _, f := range r.registry.Frames() {
		if f.Status() == StatusCompleted {
			continue
		}
		idle := time.Since(f.LastActivity())
		if idle <= r.maxIdle {
			continue
		}
		if _, err := r.registry.ForceTimeout(ctx, f.ID()); err != nil {
			r.logger.Warn("failed to reap idle frame",
				"frame_id", f.ID(),
				"idle", idle.String(),
				"error", err,
			)
			continue
		}
		r.logger.Info("reaped idle frame", "frame_id", f.ID(), "idle", idle.String())
		reaped++
	}
	return reaped
}
