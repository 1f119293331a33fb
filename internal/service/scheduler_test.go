package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sendqueue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerStopEndsRun(t *testing.T) {
	f := setupSync(t, models.QueueConfig{})
	scheduler := NewSyncScheduler(f.coordinator, 1, testLogger())

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background())
		close(done)
	}()

	scheduler.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerContextCancellation(t *testing.T) {
	f := setupSync(t, models.QueueConfig{})
	scheduler := NewSyncScheduler(f.coordinator, 1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not observe cancellation")
	}
}

func TestSchedulerRunSyncDrainsQueue(t *testing.T) {
	f := setupSync(t, models.QueueConfig{})
	scheduler := NewSyncScheduler(f.coordinator, 1, testLogger())

	_, err := f.queue.Enqueue(context.Background(), "alice@example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	scheduler.runSync(context.Background())

	pending, err := f.queue.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	f := setupSync(t, models.QueueConfig{})
	scheduler := NewSyncScheduler(f.coordinator, 0, testLogger())
	assert.Equal(t, 5*time.Minute, scheduler.interval)
}
