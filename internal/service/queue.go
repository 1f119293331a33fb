package service

import (
	"context"
	"encoding/json"
	"time"

	"sendqueue/internal/constants"
	"sendqueue/internal/errors"
	"sendqueue/internal/events"
	"sendqueue/internal/metrics"
	"sendqueue/internal/models"
	"sendqueue/internal/validation"

	"github.com/sirupsen/logrus"
)

// QueueManager is the write/read API surface of the offline queue. It never
// attempts delivery itself; draining is the sync coordinator's job.
type QueueManager struct {
	store           QueueStore
	bus             *events.Bus
	logger          *logrus.Logger
	maxRetries      int
	maxPayloadBytes int
}

func NewQueueManager(store QueueStore, bus *events.Bus, logger *logrus.Logger, cfg models.QueueConfig) *QueueManager {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = constants.DefaultMaxRetries
	}
	maxPayloadBytes := cfg.MaxPayloadBytes
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = constants.DefaultMaxPayloadBytes
	}

	return &QueueManager{
		store:           store,
		bus:             bus,
		logger:          logger,
		maxRetries:      maxRetries,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// Enqueue durably records a message for later delivery and returns its queue
// id. It succeeds whenever the store is writable, regardless of connectivity.
func (qm *QueueManager) Enqueue(ctx context.Context, chatID string, payload json.RawMessage) (int64, error) {
	if err := validation.ValidateChatID(chatID); err != nil {
		return 0, err
	}
	if err := validation.ValidatePayload(payload, qm.maxPayloadBytes); err != nil {
		return 0, err
	}

	msg := &models.QueuedMessage{
		ChatID:     chatID,
		Payload:    payload,
		QueuedAt:   time.Now().UnixMilli(),
		Status:     models.MessageStatusPending,
		RetryCount: 0,
		MaxRetries: qm.maxRetries,
	}

	id, err := qm.store.SaveQueuedMessage(ctx, msg)
	if err != nil {
		return 0, err
	}

	qm.logger.WithFields(logrus.Fields{
		"chat_id":  SanitizeChatID(ctx, chatID),
		"queue_id": id,
	}).Info("Message queued for delivery")

	metrics.IncrementCounter("queue_enqueued_total", nil, "Messages added to the offline queue")
	qm.updateDepthGauge(ctx)

	qm.bus.Publish(events.Event{
		Type:    events.TypeMessageQueued,
		ChatID:  chatID,
		QueueID: id,
	})

	return id, nil
}

// List returns the active queue: pending entries only, oldest first. Failed
// entries are excluded; use ListFailed for diagnostics. An empty chatID
// matches all chats.
func (qm *QueueManager) List(ctx context.Context, chatID string) ([]models.QueuedMessage, error) {
	return qm.store.GetMessagesByStatus(ctx, chatID, models.MessageStatusPending)
}

// ListFailed returns entries that exhausted their retry budget. They remain
// queryable and deletable until explicitly cleared.
func (qm *QueueManager) ListFailed(ctx context.Context, chatID string) ([]models.QueuedMessage, error) {
	return qm.store.GetMessagesByStatus(ctx, chatID, models.MessageStatusFailed)
}

// Count returns the number of pending entries. An empty chatID matches all
// chats.
func (qm *QueueManager) Count(ctx context.Context, chatID string) (int, error) {
	return qm.store.CountByStatus(ctx, chatID, models.MessageStatusPending)
}

// Get returns one entry by id, or nil if it does not exist.
func (qm *QueueManager) Get(ctx context.Context, id int64) (*models.QueuedMessage, error) {
	return qm.store.GetQueuedMessage(ctx, id)
}

// Remove deletes one entry.
func (qm *QueueManager) Remove(ctx context.Context, id int64) error {
	if err := qm.store.DeleteQueuedMessage(ctx, id); err != nil {
		return err
	}

	qm.updateDepthGauge(ctx)
	qm.bus.Publish(events.Event{
		Type:    events.TypeMessageRemoved,
		QueueID: id,
	})
	return nil
}

// UpdateRetryState persists sync retry progress for one entry. Errors with
// NOT_FOUND if the id no longer exists, e.g. concurrently cleared.
func (qm *QueueManager) UpdateRetryState(ctx context.Context, id int64, retryCount int, status models.MessageStatus, lastError string) error {
	return qm.store.UpdateRetryState(ctx, id, retryCount, status, lastError)
}

// ClearChat removes every entry for one chat and returns the count removed.
func (qm *QueueManager) ClearChat(ctx context.Context, chatID string) (int64, error) {
	if err := validation.ValidateChatID(chatID); err != nil {
		return 0, err
	}

	cleared, err := qm.store.ClearChat(ctx, chatID)
	if err != nil {
		return 0, err
	}

	qm.logger.WithFields(logrus.Fields{
		"chat_id": SanitizeChatID(ctx, chatID),
		"cleared": cleared,
	}).Info("Chat queue cleared")

	qm.updateDepthGauge(ctx)
	return cleared, nil
}

// ClearAll removes every entry and returns the count removed.
func (qm *QueueManager) ClearAll(ctx context.Context) (int64, error) {
	cleared, err := qm.store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}

	qm.logger.WithField("cleared", cleared).Info("All queues cleared")

	metrics.SetGauge("queue_depth_pending", 0, nil, "Pending entries in the offline queue")
	qm.bus.Publish(events.Event{
		Type:    events.TypeAllQueuesCleared,
		Cleared: cleared,
	})
	return cleared, nil
}

// updateDepthGauge refreshes the queue depth gauge. Best effort: a failed
// count must not fail the caller's operation.
func (qm *QueueManager) updateDepthGauge(ctx context.Context) {
	count, err := qm.store.CountByStatus(ctx, "", models.MessageStatusPending)
	if err != nil {
		if !errors.IsNotFound(err) {
			qm.logger.WithError(err).Debug("Failed to refresh queue depth gauge")
		}
		return
	}
	metrics.SetGauge("queue_depth_pending", float64(count), nil, "Pending entries in the offline queue")
}
