package service

import (
	"context"
	"encoding/json"

	"sendqueue/internal/models"
)

// QueueStore is the persistence surface shared by the queue manager and the
// sync coordinator.
type QueueStore interface {
	SaveQueuedMessage(ctx context.Context, msg *models.QueuedMessage) (int64, error)
	GetQueuedMessage(ctx context.Context, id int64) (*models.QueuedMessage, error)
	GetMessagesByStatus(ctx context.Context, chatID string, status models.MessageStatus) ([]models.QueuedMessage, error)
	UpdateRetryState(ctx context.Context, id int64, retryCount int, status models.MessageStatus, lastError string) error
	DeleteQueuedMessage(ctx context.Context, id int64) error
	ClearChat(ctx context.Context, chatID string) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, chatID string, status models.MessageStatus) (int, error)
}

// Deliverer is the injected delivery transport. The queue does not
// deduplicate: a Deliver call that partially succeeded and is retried may
// produce a duplicate message on the backend.
type Deliverer interface {
	Deliver(ctx context.Context, chatID string, payload json.RawMessage) (*models.DeliveryResult, error)
}

// OnlineChecker reports the last observed connectivity state.
type OnlineChecker interface {
	Online() bool
}
