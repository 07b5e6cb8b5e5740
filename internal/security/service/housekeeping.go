package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/okapicare/tenantguard/internal/security/store"
)

// attemptRetention is how long failed-login records are kept past any
// possible lockout window before the sweeper removes them.
const attemptRetention = 24 * time.Hour

// HousekeepingService periodically removes dead sessions and stale
// failed-login records so neither table grows without bound. The audit log
// is never touched; retention there is an external policy.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs each deletion independently; one failing doesn't stop the rest.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Store.Sessions().DeleteDeadSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete dead sessions", "error", err)
	}
	if err := s.Store.LoginAttempts().DeleteAttemptsBefore(ctx, now.Add(-attemptRetention)); err != nil {
		s.Logger.Error("failed to delete stale login attempts", "error", err)
	}
}
