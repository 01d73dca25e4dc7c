package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process Repository for development and tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	services map[uuid.UUID]ServiceType
	contacts map[uuid.UUID]Contact
}

func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		services: make(map[uuid.UUID]ServiceType),
		contacts: make(map[uuid.UUID]Contact),
	}
}

var _ Repository = (*MemoryRepo)(nil)

// PutServiceType adds or replaces a service type.
func (m *MemoryRepo) PutServiceType(st ServiceType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[st.ID] = st
}

// PutContact adds or replaces a contact.
func (m *MemoryRepo) PutContact(c Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.UserID] = c
}

func (m *MemoryRepo) GetServiceType(_ context.Context, id uuid.UUID) (ServiceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.services[id]
	if !ok {
		return ServiceType{}, ErrServiceTypeNotFound
	}
	return st, nil
}

func (m *MemoryRepo) GetContact(_ context.Context, userID uuid.UUID) (Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[userID]
	if !ok {
		return Contact{}, ErrUserNotFound
	}
	return c, nil
}
