package inapp

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

type idempotencyKey struct {
	kind          domain.NotificationKind
	recipientID   uuid.UUID
	referenceKind domain.ReferenceKind
	referenceID   uuid.UUID
}

func keyOf(n Notification) idempotencyKey {
	return idempotencyKey{kind: n.Kind, recipientID: n.RecipientID, referenceKind: n.ReferenceKind, referenceID: n.ReferenceID}
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]Notification
	byKey map[idempotencyKey]uuid.UUID
	order []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[uuid.UUID]Notification),
		byKey: make(map[idempotencyKey]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Insert(_ context.Context, n Notification) (Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(n)
	if id, ok := m.byKey[key]; ok {
		return m.byID[id], false, nil
	}
	n.CreatedAt = time.Now()
	m.byID[n.ID] = n
	m.byKey[key] = n.ID
	m.order = append(m.order, n.ID)
	return n, true, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

func (m *MemoryStore) List(_ context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mine := m.forLocked(userID)
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	total := len(mine)
	if offset >= total {
		return []Notification{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.forLocked(userID) {
		if !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok || n.RecipientID != userID || n.IsRead() {
		return nil
	}
	now := time.Now()
	n.ReadAt = &now
	m.byID[id] = n
	return nil
}

func (m *MemoryStore) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, n := range m.byID {
		if n.RecipientID == userID && !n.IsRead() {
			n.ReadAt = &now
			m.byID[id] = n
		}
	}
	return nil
}

func (m *MemoryStore) MarkDelivered(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok {
		return ErrNotificationNotFound
	}
	if n.DeliveredAt == nil {
		now := time.Now()
		n.DeliveredAt = &now
		m.byID[id] = n
	}
	return nil
}

// All returns every stored notification in insertion order.
func (m *MemoryStore) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Notification, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.byID[id])
	}
	return items
}

func (m *MemoryStore) forLocked(userID uuid.UUID) []Notification {
	items := make([]Notification, 0)
	for _, id := range m.order {
		if n := m.byID[id]; n.RecipientID == userID {
			items = append(items, n)
		}
	}
	return items
}
