// Package scheduler periodically refreshes cached climate normals so
// long-lived grid cells pick up newly ingested history between requests.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// KeyLister enumerates the grid cells with stored observations.
type KeyLister interface {
	Keys() []string
}

// Refresher recomputes normals for one grid cell.
type Refresher interface {
	RefreshNormals(ctx context.Context, key string) error
}

// Scheduler runs the refresh job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	keys      KeyLister
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
}

func New(keys KeyLister, refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		keys:      keys,
		refresher: refresher,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		keys := s.keys.Keys()
		s.logger.Info("normals refresh starting", "cells", len(keys))

		refreshed := 0
		for _, key := range keys {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := s.refresher.RefreshNormals(ctx, key)
			cancel()
			if err != nil {
				s.logger.Warn("normals refresh failed", "grid_key", key, "error", err)
				continue
			}
			refreshed++
		}
		s.logger.Info("normals refresh complete", "refreshed", refreshed)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
