// Package sla runs the periodic deadline sweep over in-flight
// verifications.
package sla

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweepable is the slice of the verification service the sweeper needs.
type Sweepable interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// Sweeper periodically flags verifications past their expected
// completion date. Flagging is observational: the sweep never changes a
// workflow status, it only marks the timeline and queues a notification.
type Sweeper struct {
	service  Sweepable
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper on a standard 5-field cron schedule,
// for example "*/15 * * * *" for every 15 minutes.
func NewSweeper(service Sweepable, schedule string, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler. One sweep
// runs immediately so a restart does not wait a full interval.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sla sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.logger.Info("Starting SLA sweeper", zap.String("schedule", s.schedule))
	s.cron.Start()
	go s.sweep(ctx)
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	<-s.cron.Stop().Done()
	s.logger.Info("SLA sweeper stopped")
}

func (s *Sweeper) sweep(ctx context.Context) {
	flagged, err := s.service.SweepOverdue(ctx)
	if err != nil {
		s.logger.Error("SLA sweep failed", zap.Error(err))
		return
	}
	if flagged > 0 {
		s.logger.Warn("SLA sweep flagged overdue verifications", zap.Int("flagged", flagged))
	} else {
		s.logger.Debug("SLA sweep completed", zap.Int("flagged", 0))
	}
}
