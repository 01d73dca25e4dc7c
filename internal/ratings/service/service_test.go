package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/ratings/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestGate() *Service {
	return New(repository.NewMemory(), logger.New("test"))
}

func completedJob() RateParams {
	return RateParams{
		JobID:     uuid.New(),
		JobStatus: domain.JobCompleted,
		Parties:   domain.Parties{ClientID: uuid.New(), ProviderID: uuid.New()},
	}
}

func TestRateInfersDirection(t *testing.T) {
	svc := newTestGate()
	ctx := context.Background()
	job := completedJob()

	p := job
	p.RaterID, p.Score = job.Parties.ClientID, 5
	rating, stats, err := svc.Rate(ctx, p)
	if err != nil {
		t.Fatalf("client rating: %v", err)
	}
	if rating.Direction != domain.DirectionClientToProvider || rating.RateeID != job.Parties.ProviderID {
		t.Fatalf("unexpected rating %+v", rating)
	}
	if stats.UserID != job.Parties.ProviderID || stats.Count != 1 || stats.Average != 5 {
		t.Fatalf("unexpected provider stats %+v", stats)
	}

	p.RaterID, p.Score = job.Parties.ProviderID, 3
	rating, _, err = svc.Rate(ctx, p)
	if err != nil {
		t.Fatalf("provider rating: %v", err)
	}
	if rating.Direction != domain.DirectionProviderToClient || rating.RateeID != job.Parties.ClientID {
		t.Fatalf("unexpected rating %+v", rating)
	}

	all, _ := svc.ListForJob(ctx, job.JobID)
	if len(all) != 2 {
		t.Fatalf("expected both directions stored, got %d", len(all))
	}
}

func TestRateGuards(t *testing.T) {
	svc := newTestGate()
	ctx := context.Background()
	job := completedJob()

	stranger := job
	stranger.RaterID, stranger.Score = uuid.New(), 4
	if _, _, err := svc.Rate(ctx, stranger); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	for _, score := range []int{0, 6, -1} {
		p := job
		p.RaterID, p.Score = job.Parties.ClientID, score
		if _, _, err := svc.Rate(ctx, p); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("score %d: expected validation error, got %v", score, err)
		}
	}

	for _, status := range []domain.JobStatus{domain.JobScheduled, domain.JobInProgress, domain.JobCancelled} {
		p := job
		p.JobStatus = status
		p.RaterID, p.Score = job.Parties.ClientID, 4
		if _, _, err := svc.Rate(ctx, p); !errors.Is(err, domain.ErrJobNotCompleted) {
			t.Fatalf("status %s: expected ErrJobNotCompleted, got %v", status, err)
		}
	}

	p := job
	p.RaterID, p.Score = job.Parties.ClientID, 4
	if _, _, err := svc.Rate(ctx, p); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	p.Score = 1
	if _, _, err := svc.Rate(ctx, p); !errors.Is(err, domain.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}

	stats, _ := svc.GetStats(ctx, job.Parties.ProviderID)
	if stats.Count != 1 || stats.Average != 4 {
		t.Fatalf("duplicate rating must not change stats, got %+v", stats)
	}
}

func TestRunningAverageAcrossJobs(t *testing.T) {
	svc := newTestGate()
	ctx := context.Background()
	provider := uuid.New()

	for _, score := range []int{5, 4, 2} {
		p := RateParams{
			JobID:     uuid.New(),
			JobStatus: domain.JobCompleted,
			Parties:   domain.Parties{ClientID: uuid.New(), ProviderID: provider},
			Score:     score,
		}
		p.RaterID = p.Parties.ClientID
		if _, _, err := svc.Rate(ctx, p); err != nil {
			t.Fatalf("rate: %v", err)
		}
	}

	stats, err := svc.GetStats(ctx, provider)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 3 || math.Abs(stats.Average-11.0/3.0) > 1e-9 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	empty, _ := svc.GetStats(ctx, uuid.New())
	if empty.Count != 0 || empty.Average != 0 {
		t.Fatalf("expected zero stats for unrated user, got %+v", empty)
	}
}

func TestConcurrentDuplicateRatingsStoreOne(t *testing.T) {
	svc := newTestGate()
	ctx := context.Background()
	job := completedJob()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			p := job
			p.RaterID, p.Score = job.Parties.ClientID, score
			_, _, err := svc.Rate(ctx, p)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadyRated) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i%5 + 1)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected one stored rating, got %d", wins)
	}
	stats, _ := svc.GetStats(ctx, job.Parties.ProviderID)
	if stats.Count != 1 {
		t.Fatalf("expected count 1, got %d", stats.Count)
	}
}

func TestConcurrentRatingsOnDifferentJobsKeepAverageExact(t *testing.T) {
	svc := newTestGate()
	ctx := context.Background()
	provider := uuid.New()
	const n = 40

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[int]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			p := RateParams{
				JobID:     uuid.New(),
				JobStatus: domain.JobCompleted,
				Parties:   domain.Parties{ClientID: uuid.New(), ProviderID: provider},
				Score:     score,
			}
			p.RaterID = p.Parties.ClientID
			_, stats, err := svc.Rate(ctx, p)
			if err != nil {
				t.Errorf("rate: %v", err)
				return
			}
			mu.Lock()
			counts[stats.Count] = true
			mu.Unlock()
		}(i%5 + 1)
	}
	wg.Wait()

	// Each update observed a distinct running count, so none were lost.
	if len(counts) != n {
		t.Fatalf("expected %d distinct running counts, got %d", n, len(counts))
	}
	stats, err := svc.GetStats(ctx, provider)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != n || stats.Sum != 120 || math.Abs(stats.Average-3) > 1e-9 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
