package service

import (
	"context"
	"sync"
	"time"

	"sendqueue/internal/constants"
	"sendqueue/internal/errors"
	"sendqueue/internal/events"
	"sendqueue/internal/metrics"
	"sendqueue/internal/models"
	"sendqueue/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SyncCoordinator drains pending entries through the injected delivery
// transport when online. At most one sync run executes at a time; overlapping
// triggers are dropped, not queued.
type SyncCoordinator struct {
	queue           *QueueManager
	deliver         Deliverer
	bus             *events.Bus
	online          OnlineChecker
	logger          *logrus.Logger
	errLog          *errors.Logger
	deliveryTimeout time.Duration

	// mu serializes sync runs. TryLock gives overlap rejection without a
	// check-then-set window.
	mu sync.Mutex
}

func NewSyncCoordinator(queue *QueueManager, deliver Deliverer, bus *events.Bus, online OnlineChecker, logger *logrus.Logger, cfg models.QueueConfig) *SyncCoordinator {
	deliveryTimeout := time.Duration(cfg.DeliveryTimeoutSec) * time.Second
	if deliveryTimeout <= 0 {
		deliveryTimeout = time.Duration(constants.DefaultDeliveryTimeoutSec) * time.Second
	}

	return &SyncCoordinator{
		queue:           queue,
		deliver:         deliver,
		bus:             bus,
		online:          online,
		logger:          logger,
		errLog:          errors.WrapLogger(logger),
		deliveryTimeout: deliveryTimeout,
	}
}

// SyncQueue runs one drain cycle: fetch all pending entries oldest first and
// deliver them sequentially. Each entry's outcome is isolated; a failing
// entry consumes retry budget but never blocks the entries behind it.
//
// Returns without mutating state when offline or when another run holds the
// lock.
func (sc *SyncCoordinator) SyncQueue(ctx context.Context) (*models.SyncResult, error) {
	if !sc.online.Online() {
		sc.logger.Debug("Sync skipped: offline")
		return &models.SyncResult{Success: false, Reason: models.SyncReasonOffline}, nil
	}

	if !sc.mu.TryLock() {
		sc.logger.Debug("Sync skipped: another run in progress")
		metrics.IncrementCounter("sync_overlap_rejected_total", nil, "Sync triggers dropped because a run was in progress")
		return &models.SyncResult{Success: false, Reason: models.SyncReasonSyncInProgress}, nil
	}
	defer sc.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "queue.sync")
	defer span.End()

	start := time.Now()
	sc.bus.Publish(events.Event{Type: events.TypeSyncStarted})

	pending, err := sc.queue.List(ctx, "")
	if err != nil {
		tracing.RecordError(ctx, err)
		sc.bus.Publish(events.Event{Type: events.TypeSyncError, Error: err.Error()})
		return nil, err
	}

	sc.logger.WithField("pending", len(pending)).Info("Sync run started")
	tracing.AddSpanAttributes(ctx, attribute.Int("queue.pending", len(pending)))

	var synced, failed int
	for i := range pending {
		entry := &pending[i]
		if sc.syncEntry(ctx, entry) {
			synced++
		} else {
			failed++
		}
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("queue.synced", synced),
		attribute.Int("queue.failed", failed),
	)
	metrics.AddToCounter("sync_delivered_total", float64(synced), nil, "Messages delivered by sync runs")
	metrics.AddToCounter("sync_failed_total", float64(failed), nil, "Delivery failures during sync runs")
	metrics.RecordTimer("sync_run_duration", time.Since(start), nil, "Duration of one sync run")

	sc.logger.WithFields(logrus.Fields{
		"synced":   synced,
		"failed":   failed,
		"duration": time.Since(start),
	}).Info("Sync run completed")

	sc.bus.Publish(events.Event{
		Type:   events.TypeSyncCompleted,
		Synced: synced,
		Failed: failed,
	})

	return &models.SyncResult{Success: true, Synced: synced, Failed: failed}, nil
}

// syncEntry attempts delivery of one entry and applies the retry state
// machine. Returns true when the entry was delivered and removed.
func (sc *SyncCoordinator) syncEntry(ctx context.Context, entry *models.QueuedMessage) bool {
	entryLogger := sc.logger.WithFields(logrus.Fields{
		"queue_id":    entry.ID,
		"chat_id":     SanitizeChatID(ctx, entry.ChatID),
		"retry_count": entry.RetryCount,
	})

	result, err := sc.attemptDelivery(ctx, entry)
	if err == nil && result != nil && result.Success {
		if removeErr := sc.queue.Remove(ctx, entry.ID); removeErr != nil && !errors.IsNotFound(removeErr) {
			// Delivered but not removed: the entry will be retried and may
			// duplicate. Surface loudly.
			entryLogger.WithError(removeErr).Error("Delivered message could not be removed from queue")
		}

		entryLogger.WithField("delivered_id", result.DeliveredID).Info("Queued message delivered")
		sc.bus.Publish(events.Event{
			Type:        events.TypeMessageSynced,
			ChatID:      entry.ChatID,
			QueueID:     entry.ID,
			DeliveredID: result.DeliveredID,
		})
		return true
	}

	lastError := "delivery rejected by backend"
	if err != nil {
		lastError = err.Error()
	}

	retryCount := entry.RetryCount + 1
	status := models.MessageStatusPending
	if retryCount >= entry.MaxRetries {
		status = models.MessageStatusFailed
	}

	if updateErr := sc.queue.UpdateRetryState(ctx, entry.ID, retryCount, status, lastError); updateErr != nil {
		if errors.IsNotFound(updateErr) {
			// Entry cleared while we were delivering; nothing to record.
			entryLogger.Debug("Entry removed during sync, skipping retry bookkeeping")
			return false
		}
		sc.errLog.LogError(updateErr, "Failed to persist retry state", logrus.Fields{
			"queue_id": entry.ID,
		})
		return false
	}

	if status == models.MessageStatusFailed {
		entryLogger.WithField("last_error", lastError).Warn("Retry budget exhausted, entry marked failed")
		metrics.IncrementCounter("sync_exhausted_total", nil, "Entries that exhausted their retry budget")
		sc.bus.Publish(events.Event{
			Type:    events.TypeMessageFailed,
			ChatID:  entry.ChatID,
			QueueID: entry.ID,
			Error:   lastError,
		})
	} else if err != nil {
		sc.errLog.LogRetryableError(err, "Delivery failed, will retry on next sync", logrus.Fields{
			"queue_id":    entry.ID,
			"retry_count": retryCount,
		})
	} else {
		entryLogger.WithField("retry_count", retryCount).Warn("Delivery rejected, will retry on next sync")
	}

	return false
}

// attemptDelivery calls the transport with a per-attempt timeout so one hung
// delivery cannot stall the rest of the run indefinitely.
func (sc *SyncCoordinator) attemptDelivery(ctx context.Context, entry *models.QueuedMessage) (*models.DeliveryResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, sc.deliveryTimeout)
	defer cancel()

	attemptCtx, span := tracing.StartSpan(attemptCtx, "queue.deliver",
		attribute.Int64("queue.id", entry.ID),
		attribute.Int("queue.retry_count", entry.RetryCount),
	)
	defer span.End()

	start := time.Now()
	result, err := sc.deliver.Deliver(attemptCtx, entry.ChatID, entry.Payload)
	metrics.RecordTimer("delivery_attempt_duration", time.Since(start), nil, "Duration of delivery attempts")

	if err != nil {
		tracing.RecordError(attemptCtx, err)
		return nil, err
	}
	if result != nil && !result.Success {
		tracing.SetSpanStatus(attemptCtx, codes.Error, "delivery rejected")
	}
	return result, nil
}
