package repository

import (
	"context"
	"sync"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

type ratingKey struct {
	jobID     uuid.UUID
	direction domain.Direction
}

// MemoryRepo is an in-process Repository guarded by a single mutex.
type MemoryRepo struct {
	mu      sync.Mutex
	ratings map[ratingKey]Rating
	byJob   map[uuid.UUID][]Rating
	stats   map[uuid.UUID]Stats
}

// NewMemory creates an empty in-memory ratings store.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		ratings: make(map[ratingKey]Rating),
		byJob:   make(map[uuid.UUID][]Rating),
		stats:   make(map[uuid.UUID]Stats),
	}
}

var _ Repository = (*MemoryRepo)(nil)

func (m *MemoryRepo) Insert(_ context.Context, rating Rating) (Rating, Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ratingKey{jobID: rating.JobID, direction: rating.Direction}
	if _, exists := m.ratings[key]; exists {
		return Rating{}, Stats{}, domain.ErrAlreadyRated
	}

	rating.CreatedAt = time.Now()
	m.ratings[key] = rating
	m.byJob[rating.JobID] = append(m.byJob[rating.JobID], rating)

	st := m.stats[rating.RateeID]
	st.UserID = rating.RateeID
	st.Count++
	st.Sum += int64(rating.Score)
	st.Average = float64(st.Sum) / float64(st.Count)
	m.stats[rating.RateeID] = st
	return rating, st, nil
}

func (m *MemoryRepo) GetStats(_ context.Context, userID uuid.UUID) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stats[userID]
	if !ok {
		return Stats{UserID: userID}, nil
	}
	return st, nil
}

func (m *MemoryRepo) ListForJob(_ context.Context, jobID uuid.UUID) ([]Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rating{}, m.byJob[jobID]...), nil
}
