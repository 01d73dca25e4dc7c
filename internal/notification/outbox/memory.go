package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu             sync.Mutex
	records        map[uuid.UUID]Record
	byNotification map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:        make(map[uuid.UUID]Record),
		byNotification: make(map[uuid.UUID]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Enqueue(_ context.Context, notificationID uuid.UUID, lastError string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byNotification[notificationID]; ok {
		rec := m.records[id]
		if rec.Status == StatusFailed {
			rec.Status = StatusPending
			rec.LastError = &lastError
			rec.RunAt = time.Now()
			m.records[id] = rec
		}
		return id, nil
	}

	rec := Record{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Status:         StatusPending,
		RunAt:          time.Now(),
		LastError:      &lastError,
	}
	m.records[rec.ID] = rec
	m.byNotification[notificationID] = rec.ID
	return rec.ID, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ClaimPending(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit < 1 {
		limit = defaultClaimLimit
	}
	now := time.Now()
	due := make([]Record, 0)
	for _, rec := range m.records {
		if rec.Status == StatusPending && !rec.RunAt.After(now) {
			due = append(due, rec)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = StatusEnqueued
		m.records[due[i].ID] = due[i]
	}
	return due, nil
}

func (m *MemoryStore) MarkPending(_ context.Context, id uuid.UUID, lastError *string) error {
	return m.update(id, func(rec *Record) {
		rec.Status = StatusPending
		rec.LastError = lastError
	})
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(rec *Record) {
		rec.Status = StatusProcessing
		rec.Attempts++
	})
}

func (m *MemoryStore) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(rec *Record) {
		rec.Status = StatusSucceeded
		rec.LastError = nil
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	return m.update(id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.LastError = &lastError
	})
}

// Records returns a snapshot of every row.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		items = append(items, rec)
	}
	return items
}

func (m *MemoryStore) update(id uuid.UUID, apply func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	apply(&rec)
	m.records[id] = rec
	return nil
}
