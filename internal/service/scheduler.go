package service

import (
	"context"
	"time"

	"sendqueue/internal/constants"

	"github.com/sirupsen/logrus"
)

// SyncScheduler kicks a sync run on a fixed interval as a safety net on top
// of the connectivity-edge trigger, catching entries enqueued while already
// online.
type SyncScheduler struct {
	coordinator *SyncCoordinator
	interval    time.Duration
	logger      *logrus.Logger
	stopCh      chan struct{}
}

func NewSyncScheduler(coordinator *SyncCoordinator, intervalMin int, logger *logrus.Logger) *SyncScheduler {
	if intervalMin <= 0 {
		intervalMin = constants.DefaultSyncIntervalMinutes
	}
	return &SyncScheduler{
		coordinator: coordinator,
		interval:    time.Duration(intervalMin) * time.Minute,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

func (s *SyncScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval).Info("Starting sync scheduler")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Sync scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *SyncScheduler) Stop() {
	close(s.stopCh)
}

func (s *SyncScheduler) runSync(ctx context.Context) {
	result, err := s.coordinator.SyncQueue(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled sync failed")
		return
	}

	if !result.Success {
		s.logger.WithField("reason", result.Reason).Debug("Scheduled sync skipped")
		return
	}

	if result.Synced > 0 || result.Failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"synced": result.Synced,
			"failed": result.Failed,
		}).Info("Scheduled sync completed")
	}
}
