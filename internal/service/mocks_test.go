package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"sendqueue/internal/errors"
	"sendqueue/internal/models"
)

// memStore is an in-memory QueueStore with the same ordering and not-found
// semantics as the SQLite store.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.QueuedMessage

	saveErr   error
	listErr   error
	deleteErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]models.QueuedMessage)}
}

func (s *memStore) SaveQueuedMessage(ctx context.Context, msg *models.QueuedMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.nextID++
	stored := *msg
	stored.ID = s.nextID
	s.rows[stored.ID] = stored
	return stored.ID, nil
}

func (s *memStore) GetQueuedMessage(ctx context.Context, id int64) (*models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memStore) GetMessagesByStatus(ctx context.Context, chatID string, status models.MessageStatus) ([]models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.QueuedMessage
	for _, row := range s.rows {
		if row.Status != status {
			continue
		}
		if chatID != "" && row.ChatID != chatID {
			continue
		}
		out = append(out, row)
	}
	sortFIFO(out)
	return out, nil
}

func (s *memStore) UpdateRetryState(ctx context.Context, id int64, retryCount int, status models.MessageStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[id]
	if !ok {
		return errors.NewNotFoundError("queued message", id)
	}
	row.RetryCount = retryCount
	row.Status = status
	row.LastError = lastError
	s.rows[id] = row
	return nil
}

func (s *memStore) DeleteQueuedMessage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.rows[id]; !ok {
		return errors.NewNotFoundError("queued message", id)
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) ClearChat(ctx context.Context, chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared int64
	for id, row := range s.rows {
		if row.ChatID == chatID {
			delete(s.rows, id)
			cleared++
		}
	}
	return cleared, nil
}

func (s *memStore) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := int64(len(s.rows))
	s.rows = make(map[int64]models.QueuedMessage)
	return cleared, nil
}

func (s *memStore) CountByStatus(ctx context.Context, chatID string, status models.MessageStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.rows {
		if row.Status != status {
			continue
		}
		if chatID != "" && row.ChatID != chatID {
			continue
		}
		count++
	}
	return count, nil
}

func sortFIFO(rows []models.QueuedMessage) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].QueuedAt != rows[j].QueuedAt {
			return rows[i].QueuedAt < rows[j].QueuedAt
		}
		return rows[i].ID < rows[j].ID
	})
}

// fakeDeliverer records delivery attempts and answers them via a
// configurable function.
type fakeDeliverer struct {
	mu       sync.Mutex
	calls    []deliveryCall
	respond  func(chatID string, payload json.RawMessage) (*models.DeliveryResult, error)
	blockFor chan struct{}
}

type deliveryCall struct {
	ChatID  string
	Payload string
}

func (d *fakeDeliverer) Deliver(ctx context.Context, chatID string, payload json.RawMessage) (*models.DeliveryResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, deliveryCall{ChatID: chatID, Payload: string(payload)})
	d.mu.Unlock()

	if d.blockFor != nil {
		select {
		case <-d.blockFor:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if d.respond != nil {
		return d.respond(chatID, payload)
	}
	return &models.DeliveryResult{Success: true, DeliveredID: "delivered-" + chatID}, nil
}

func (d *fakeDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDeliverer) callOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	order := make([]string, len(d.calls))
	for i, call := range d.calls {
		order[i] = call.Payload
	}
	return order
}

// staticOnline is a fixed OnlineChecker.
type staticOnline struct {
	mu     sync.Mutex
	online bool
}

func (s *staticOnline) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *staticOnline) set(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}
