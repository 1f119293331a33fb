package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"sendqueue/internal/database"
	"sendqueue/internal/events"
	"sendqueue/internal/models"
	"sendqueue/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDeliverer struct {
	fail bool
}

func (d *stubDeliverer) Deliver(ctx context.Context, chatID string, payload json.RawMessage) (*models.DeliveryResult, error) {
	if d.fail {
		return nil, fmt.Errorf("backend unavailable")
	}
	return &models.DeliveryResult{Success: true, DeliveredID: "delivered-1"}, nil
}

type stubOnline struct {
	online bool
}

func (s *stubOnline) Online() bool { return s.online }

type serverFixture struct {
	server    *Server
	queue     *service.QueueManager
	deliverer *stubDeliverer
	online    *stubOnline
}

func setupTestServer(t *testing.T) *serverFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.New(filepath.Join(t.TempDir(), "server-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(logger)
	deliverer := &stubDeliverer{}
	online := &stubOnline{online: true}

	queue := service.NewQueueManager(db, bus, logger, models.QueueConfig{MaxRetries: 3})
	coordinator := service.NewSyncCoordinator(queue, deliverer, bus, online, logger, models.QueueConfig{})

	server := NewServer(models.ServerConfig{Port: 8083}, queue, coordinator, bus, online, logger)
	return &serverFixture{server: server, queue: queue, deliverer: deliverer, online: online}
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	f.server.router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["online"])
}

func TestEnqueueEndpoint(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodPost, "/api/v1/messages", enqueueRequest{
		ChatID:  "alice@example.com",
		Payload: json.RawMessage(`{"text":"hi"}`),
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var body enqueueResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Positive(t, body.ID)
	assert.Equal(t, "pending", body.Status)
}

func TestEnqueueEndpointRejectsInvalidInput(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodPost, "/api/v1/messages", enqueueRequest{
		ChatID:  "",
		Payload: json.RawMessage(`{}`),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader([]byte("{broken")))
	recorder := httptest.NewRecorder()
	f.server.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListQueueEndpoint(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var all []models.QueuedMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	resp = f.do(t, http.MethodGet, "/api/v1/queue?chatId=alice@example.com", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var filtered []models.QueuedMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "alice@example.com", filtered[0].ChatID)
}

func TestCountEndpoint(t *testing.T) {
	f := setupTestServer(t)

	_, err := f.queue.Enqueue(context.Background(), "alice@example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/queue/count", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body["count"])
}

func TestRemoveEndpoint(t *testing.T) {
	f := setupTestServer(t)

	id, err := f.queue.Enqueue(context.Background(), "alice@example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	resp := f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/queue/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/queue/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestClearEndpoint(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "alice@example.com", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "bob@example.com", json.RawMessage(`{"n":3}`))
	require.NoError(t, err)

	resp := f.do(t, http.MethodDelete, "/api/v1/queue?chatId=alice@example.com", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body["cleared"])

	resp = f.do(t, http.MethodDelete, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body["cleared"])
}

func TestSyncEndpoint(t *testing.T) {
	f := setupTestServer(t)

	_, err := f.queue.Enqueue(context.Background(), "alice@example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	resp := f.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var result models.SyncResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Synced)
}

func TestSyncEndpointOffline(t *testing.T) {
	f := setupTestServer(t)
	f.online.online = false

	resp := f.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	var result models.SyncResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, models.SyncReasonOffline, result.Reason)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body, "counters")
	assert.Contains(t, body, "uptime_ms")
}
