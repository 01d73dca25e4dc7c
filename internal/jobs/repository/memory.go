package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process Repository guarded by a single mutex.
type MemoryRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]Job
	byQuote map[uuid.UUID]uuid.UUID
	now     func() time.Time
}

// NewMemory creates an empty in-memory job store.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		jobs:    make(map[uuid.UUID]Job),
		byQuote: make(map[uuid.UUID]uuid.UUID),
		now:     time.Now,
	}
}

var _ Repository = (*MemoryRepo)(nil)

func (m *MemoryRepo) Create(_ context.Context, job Job) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byQuote[job.QuoteID]; exists {
		return Job{}, domain.ErrJobAlreadyExists
	}

	now := m.now()
	job.Status = domain.JobScheduled
	job.EvidenceRefs = []string{}
	job.CreatedAt = now
	job.UpdatedAt = now
	m.jobs[job.ID] = job
	m.byQuote[job.QuoteID] = job.ID
	return job, nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *MemoryRepo) GetByQuote(_ context.Context, quoteID uuid.UUID) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byQuote[quoteID]
	if !ok {
		return Job{}, domain.ErrJobNotFound
	}
	return m.jobs[id], nil
}

func (m *MemoryRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Job, 0)
	for _, job := range m.jobs {
		if job.ClientID == userID || job.ProviderID == userID {
			items = append(items, job)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *MemoryRepo) Start(_ context.Context, id uuid.UUID) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.liveLocked(id)
	if err != nil {
		return Job{}, err
	}
	if job.Status == domain.JobInProgress {
		return job, nil
	}

	now := m.now()
	job.Status = domain.JobInProgress
	job.StartedAt = &now
	job.UpdatedAt = now
	m.jobs[id] = job
	return job, nil
}

func (m *MemoryRepo) MarkProviderFinalized(_ context.Context, id uuid.UUID, evidenceRefs []string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.liveLocked(id)
	if err != nil {
		return Job{}, err
	}

	now := m.now()
	job.Status = domain.JobInProgress
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if job.ProviderFinalizedAt == nil {
		job.ProviderFinalizedAt = &now
	}
	job.EvidenceRefs = append(append([]string{}, job.EvidenceRefs...), evidenceRefs...)
	job.UpdatedAt = now
	m.jobs[id] = job
	return job, nil
}

func (m *MemoryRepo) Complete(_ context.Context, id uuid.UUID) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.liveLocked(id)
	if err != nil {
		return Job{}, err
	}

	now := m.now()
	job.Status = domain.JobCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	m.jobs[id] = job
	return job, nil
}

func (m *MemoryRepo) Cancel(_ context.Context, id uuid.UUID, by domain.Role, note string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.liveLocked(id)
	if err != nil {
		return Job{}, err
	}

	now := m.now()
	job.Status = domain.JobCancelled
	job.CancelledAt = &now
	job.CancelledBy = &by
	job.CancellationNote = &note
	job.UpdatedAt = now
	m.jobs[id] = job
	return job, nil
}

func (m *MemoryRepo) liveLocked(id uuid.UUID) (Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, domain.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return Job{}, domain.ErrJobTerminal
	}
	return job, nil
}
