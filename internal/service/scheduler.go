package service

import (
	"context"
	"time"

	"wechat/internal/constants"
	"wechat/internal/media"

	"github.com/sirupsen/logrus"
)

// RetentionStore deletes audit records older than a retention window.
type RetentionStore interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler periodically prunes the moderation audit log and removes
// recordings left behind by an interrupted session.
type Scheduler struct {
	store         RetentionStore
	retentionDays int
	interval      time.Duration
	recordingDir  string
	logger        *logrus.Logger
	stopCh        chan struct{}
}

// NewScheduler prunes the audit log and stale recordings every interval. A
// nil store skips the audit log.
func NewScheduler(store RetentionStore, retentionDays int, interval time.Duration, recordingDir string, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Duration(constants.CleanupSchedulerIntervalHours) * time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Scheduler{
		store:         store,
		retentionDays: retentionDays,
		interval:      interval,
		recordingDir:  recordingDir,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start runs one cleanup immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("Starting cleanup scheduler")
	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if s.store != nil {
		removed, err := s.store.CleanupOldRecords(ctx, s.retentionDays)
		if err != nil {
			s.logger.WithError(err).Error("Failed to cleanup moderation audit log")
		} else {
			s.logger.WithFields(logrus.Fields{
				"retentionDays": s.retentionDays,
				LogFieldCount:   removed,
			}).Debug("Moderation audit log cleanup completed")
		}
	}

	if s.recordingDir != "" {
		removed, err := media.CleanupStaleRecordings(s.recordingDir, s.interval)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to remove stale recordings")
		} else if removed > 0 {
			s.logger.WithField(LogFieldCount, removed).Info("Removed stale recordings")
		}
	}
}
