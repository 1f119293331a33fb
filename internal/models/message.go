package models

import (
	"encoding/json"
	"time"
)

type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusFailed  MessageStatus = "failed"
)

// QueuedMessage is a single undelivered message awaiting sync. Delivered
// entries are deleted rather than transitioned, so the store only ever holds
// undelivered work.
type QueuedMessage struct {
	ID         int64           `db:"id" json:"id"`
	ChatID     string          `db:"chat_id" json:"chatId"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	QueuedAt   int64           `db:"queued_at" json:"queuedAt"` // epoch milliseconds
	Status     MessageStatus   `db:"status" json:"status"`
	RetryCount int             `db:"retry_count" json:"retryCount"`
	MaxRetries int             `db:"max_retries" json:"maxRetries"`
	LastError  string          `db:"last_error" json:"lastError,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

// RetryBudgetExhausted reports whether the entry has used up its retry budget
// and must go terminal.
func (m *QueuedMessage) RetryBudgetExhausted() bool {
	return m.RetryCount >= m.MaxRetries
}

// DeliveryResult is the outcome of a single delivery attempt through the
// injected transport.
type DeliveryResult struct {
	Success     bool   `json:"success"`
	DeliveredID string `json:"deliveredId,omitempty"`
}

// Sync skip reasons reported by the coordinator when a run declines to start.
const (
	SyncReasonOffline        = "offline"
	SyncReasonSyncInProgress = "sync_in_progress"
)

// SyncResult summarizes one sync run.
type SyncResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
}
