package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultPurgeSchedule = "@daily"

type expiredPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// PurgeService periodically deletes reminders that expired long ago, along with their viewer state.
type PurgeService struct {
	purger    expiredPurger
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	logger    *zap.Logger
	entry     cron.EntryID
}

// PurgeOption customises the PurgeService.
type PurgeOption func(*PurgeService)

// WithPurgeCron injects a preconfigured cron instance.
func WithPurgeCron(c *cron.Cron) PurgeOption {
	return func(s *PurgeService) {
		if c != nil {
			s.cron = c
		}
	}
}

// NewPurgeService constructs the scheduler. A non-positive retention disables purging.
func NewPurgeService(purger expiredPurger, schedule string, retention time.Duration, logger *zap.Logger, opts ...PurgeOption) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = defaultPurgeSchedule
	}
	s := &PurgeService{purger: purger, schedule: schedule, retention: retention, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the purge job and launches the scheduler.
func (s *PurgeService) Start() error {
	if s.purger == nil || s.retention <= 0 {
		return nil
	}
	id, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn("expired reminder purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info("expired reminder purge scheduled", zap.String("schedule", s.schedule), zap.Duration("retention", s.retention))
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *PurgeService) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce performs one purge pass.
func (s *PurgeService) RunOnce(ctx context.Context) (int64, error) {
	if s.purger == nil || s.retention <= 0 {
		return 0, nil
	}
	return s.purger.PurgeExpired(ctx, s.retention)
}

// Next reports when the purge job runs next. Zero when not scheduled.
func (s *PurgeService) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}
