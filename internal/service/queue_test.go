package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"sendqueue/internal/errors"
	"sendqueue/internal/events"
	"sendqueue/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupQueueManager(t *testing.T) (*QueueManager, *memStore, *events.Bus) {
	t.Helper()
	store := newMemStore()
	bus := events.NewBus(testLogger())
	qm := NewQueueManager(store, bus, testLogger(), models.QueueConfig{MaxRetries: 3})
	require.NotNil(t, qm)
	return qm, store, bus
}

func TestEnqueue(t *testing.T) {
	qm, store, bus := setupQueueManager(t)
	ctx := context.Background()

	var published []events.Event
	bus.Subscribe(func(evt events.Event) {
		published = append(published, evt)
	})

	id, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	msg, err := store.GetQueuedMessage(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStatusPending, msg.Status)
	assert.Equal(t, 0, msg.RetryCount)
	assert.Equal(t, 3, msg.MaxRetries)
	assert.NotZero(t, msg.QueuedAt)

	require.Len(t, published, 1)
	assert.Equal(t, events.TypeMessageQueued, published[0].Type)
	assert.Equal(t, "alice@example.com", published[0].ChatID)
	assert.Equal(t, id, published[0].QueueID)
}

func TestEnqueueSucceedsRegardlessOfConnectivity(t *testing.T) {
	// The queue manager has no connectivity dependency at all: enqueue while
	// offline is indistinguishable from enqueue while online.
	qm, _, _ := setupQueueManager(t)
	ctx := context.Background()

	id, err := qm.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"text":"queued offline"}`))
	require.NoError(t, err)

	pending, err := qm.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}

func TestEnqueueValidation(t *testing.T) {
	qm, store, _ := setupQueueManager(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		chatID  string
		payload json.RawMessage
	}{
		{"empty chat id", "", json.RawMessage(`{}`)},
		{"empty payload", "alice@example.com", nil},
		{"invalid json payload", "alice@example.com", json.RawMessage(`{not json`)},
		{"control character in chat id", "alice\x00", json.RawMessage(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qm.Enqueue(ctx, tt.chatID, tt.payload)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
		})
	}

	count, err := store.CountByStatus(ctx, "", models.MessageStatusPending)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected messages must not be persisted")
}

func TestEnqueuePayloadTooLarge(t *testing.T) {
	store := newMemStore()
	bus := events.NewBus(testLogger())
	qm := NewQueueManager(store, bus, testLogger(), models.QueueConfig{MaxPayloadBytes: 16})
	ctx := context.Background()

	_, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"text":"this payload is too large"}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestListExcludesFailedEntries(t *testing.T) {
	qm, store, _ := setupQueueManager(t)
	ctx := context.Background()

	pendingID, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	failedID, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	require.NoError(t, store.UpdateRetryState(ctx, failedID, 3, models.MessageStatusFailed, "gave up"))

	pending, err := qm.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pendingID, pending[0].ID)

	failed, err := qm.ListFailed(ctx, "")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, failedID, failed[0].ID)
	assert.Equal(t, "gave up", failed[0].LastError)
}

func TestCountScopedByChat(t *testing.T) {
	qm, _, _ := setupQueueManager(t)
	ctx := context.Background()

	_, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	_, err = qm.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"n":3}`))
	require.NoError(t, err)

	total, err := qm.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	alice, err := qm.Count(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, alice)
}

func TestRemove(t *testing.T) {
	qm, _, bus := setupQueueManager(t)
	ctx := context.Background()

	id, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	var removed []events.Event
	bus.Subscribe(func(evt events.Event) {
		if evt.Type == events.TypeMessageRemoved {
			removed = append(removed, evt)
		}
	})

	require.NoError(t, qm.Remove(ctx, id))
	require.Len(t, removed, 1)
	assert.Equal(t, id, removed[0].QueueID)

	msg, err := qm.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestRemoveMissingEntry(t *testing.T) {
	qm, _, _ := setupQueueManager(t)

	err := qm.Remove(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestClearChatOnlyTouchesThatChat(t *testing.T) {
	qm, _, _ := setupQueueManager(t)
	ctx := context.Background()

	_, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	keepID, err := qm.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"n":3}`))
	require.NoError(t, err)

	cleared, err := qm.ClearChat(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	remaining, err := qm.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keepID, remaining[0].ID)
}

func TestClearAll(t *testing.T) {
	qm, _, bus := setupQueueManager(t)
	ctx := context.Background()

	_, err := qm.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = qm.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)

	var clearedEvents []events.Event
	bus.Subscribe(func(evt events.Event) {
		if evt.Type == events.TypeAllQueuesCleared {
			clearedEvents = append(clearedEvents, evt)
		}
	})

	cleared, err := qm.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	require.Len(t, clearedEvents, 1)
	assert.Equal(t, int64(2), clearedEvents[0].Cleared)

	count, err := qm.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClearAllEmptyQueue(t *testing.T) {
	qm, _, _ := setupQueueManager(t)

	cleared, err := qm.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cleared)
}
