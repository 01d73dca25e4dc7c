package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process Repository. Every method runs under one mutex,
// which gives it the same single-commit semantics as the PostgreSQL Repo.
type MemoryRepo struct {
	mu          sync.Mutex
	requests    map[uuid.UUID]ServiceRequest
	quotes      map[uuid.UUID]Quote
	invitations map[uuid.UUID][]uuid.UUID
	now         func() time.Time
}

// NewMemory creates an empty in-memory ledger store.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		requests:    make(map[uuid.UUID]ServiceRequest),
		quotes:      make(map[uuid.UUID]Quote),
		invitations: make(map[uuid.UUID][]uuid.UUID),
		now:         time.Now,
	}
}

var _ Repository = (*MemoryRepo)(nil)

func (m *MemoryRepo) CreateRequest(_ context.Context, req ServiceRequest) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	req.Status = domain.RequestPending
	req.PhotoRefs = append([]string{}, req.PhotoRefs...)
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.ID] = req
	return req, nil
}

func (m *MemoryRepo) GetRequest(_ context.Context, id uuid.UUID) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return ServiceRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (m *MemoryRepo) ListRequestsByClient(_ context.Context, clientID uuid.UUID) ([]ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]ServiceRequest, 0)
	for _, req := range m.requests {
		if req.ClientID == clientID {
			items = append(items, req)
		}
	}
	sortRequestsNewestFirst(items)
	return items, nil
}

func (m *MemoryRepo) ListRequestsForProvider(_ context.Context, providerID uuid.UUID) ([]ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]ServiceRequest, 0)
	for requestID, invitees := range m.invitations {
		if containsID(invitees, providerID) {
			items = append(items, m.requests[requestID])
		}
	}
	sortRequestsNewestFirst(items)
	return items, nil
}

func (m *MemoryRepo) AddInvitations(_ context.Context, requestID uuid.UUID, providerIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	if !req.Status.AcceptsQuotes() {
		return nil, domain.ErrRequestNotOpen
	}

	added := make([]uuid.UUID, 0, len(providerIDs))
	for _, id := range providerIDs {
		if m.inviteLocked(requestID, id) {
			added = append(added, id)
		}
	}
	return added, nil
}

func (m *MemoryRepo) ListInvitees(_ context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID{}, m.invitations[requestID]...), nil
}

func (m *MemoryRepo) InsertQuote(_ context.Context, quote Quote) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[quote.RequestID]
	if !ok {
		return Quote{}, domain.ErrRequestNotFound
	}
	if !req.Status.AcceptsQuotes() {
		return Quote{}, domain.ErrRequestNotOpen
	}
	for _, existing := range m.quotes {
		if existing.RequestID == quote.RequestID && existing.ProviderID == quote.ProviderID && existing.Status == domain.QuoteOpen {
			return Quote{}, domain.ErrDuplicateQuote
		}
	}

	now := m.now()
	quote.Status = domain.QuoteOpen
	quote.CreatedAt = now
	quote.UpdatedAt = now
	m.quotes[quote.ID] = quote
	m.inviteLocked(quote.RequestID, quote.ProviderID)

	if req.Status == domain.RequestPending {
		req.Status = domain.RequestQuoting
		req.UpdatedAt = now
		m.requests[req.ID] = req
	}
	return quote, nil
}

func (m *MemoryRepo) GetQuote(_ context.Context, id uuid.UUID) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok {
		return Quote{}, domain.ErrQuoteNotFound
	}
	return q, nil
}

func (m *MemoryRepo) ListQuotes(_ context.Context, requestID uuid.UUID) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotesForLocked(requestID), nil
}

func (m *MemoryRepo) AcceptQuote(_ context.Context, requestID, quoteID uuid.UUID) (AcceptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return AcceptResult{}, domain.ErrRequestNotFound
	}
	chosen, ok := m.quotes[quoteID]
	if !ok || chosen.RequestID != requestID {
		return AcceptResult{}, domain.ErrQuoteNotFound
	}
	if chosen.Status != domain.QuoteOpen {
		return AcceptResult{}, domain.ErrQuoteNotOpen
	}
	if !req.Status.AcceptsQuotes() {
		return AcceptResult{}, domain.ErrRequestNotOpen
	}

	now := m.now()
	chosen.Status = domain.QuoteAccepted
	chosen.UpdatedAt = now
	m.quotes[chosen.ID] = chosen

	rejected := m.rejectOpenLocked(requestID, now)

	req.Status = domain.RequestAccepted
	req.UpdatedAt = now
	m.requests[requestID] = req

	return AcceptResult{
		Request:  req,
		Accepted: chosen,
		Rejected: rejected,
		Invitees: append([]uuid.UUID{}, m.invitations[requestID]...),
	}, nil
}

func (m *MemoryRepo) RejectQuote(_ context.Context, quoteID uuid.UUID) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[quoteID]
	if !ok {
		return Quote{}, domain.ErrQuoteNotFound
	}
	if q.Status != domain.QuoteOpen {
		return Quote{}, domain.ErrQuoteNotOpen
	}
	q.Status = domain.QuoteRejected
	q.UpdatedAt = m.now()
	m.quotes[q.ID] = q
	return q, nil
}

func (m *MemoryRepo) CancelRequest(_ context.Context, requestID uuid.UUID) (CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return CancelResult{}, domain.ErrRequestNotFound
	}
	if !req.Status.AcceptsQuotes() {
		return CancelResult{}, domain.ErrRequestNotOpen
	}

	now := m.now()
	rejected := m.rejectOpenLocked(requestID, now)
	req.Status = domain.RequestCancelled
	req.UpdatedAt = now
	m.requests[requestID] = req

	return CancelResult{
		Request:  req,
		Rejected: rejected,
		Invitees: append([]uuid.UUID{}, m.invitations[requestID]...),
	}, nil
}

func (m *MemoryRepo) rejectOpenLocked(requestID uuid.UUID, now time.Time) []Quote {
	rejected := make([]Quote, 0)
	for _, q := range m.quotesForLocked(requestID) {
		if q.Status != domain.QuoteOpen {
			continue
		}
		q.Status = domain.QuoteRejected
		q.UpdatedAt = now
		m.quotes[q.ID] = q
		rejected = append(rejected, q)
	}
	return rejected
}

func (m *MemoryRepo) quotesForLocked(requestID uuid.UUID) []Quote {
	items := make([]Quote, 0)
	for _, q := range m.quotes {
		if q.RequestID == requestID {
			items = append(items, q)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (m *MemoryRepo) inviteLocked(requestID, providerID uuid.UUID) bool {
	if containsID(m.invitations[requestID], providerID) {
		return false
	}
	m.invitations[requestID] = append(m.invitations[requestID], providerID)
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func sortRequestsNewestFirst(items []ServiceRequest) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
