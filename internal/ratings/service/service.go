// Package service implements the rating gate: each party of a completed job
// may rate the other exactly once.
package service

import (
	"context"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/ratings/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	minScore      = 1
	maxScore      = 5
	maxCommentLen = 2000
)

// Service provides the rating gate.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new rating gate service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// RateParams carries the job being rated and the rater's score.
type RateParams struct {
	JobID     uuid.UUID
	JobStatus domain.JobStatus
	Parties   domain.Parties
	RaterID   uuid.UUID
	Score     int
	Comment   string
}

// Rate records a rating. The direction and ratee are inferred from which
// party the rater is.
func (s *Service) Rate(ctx context.Context, p RateParams) (repository.Rating, repository.Stats, error) {
	direction, rateeID, err := p.Parties.RatingDirection(p.RaterID)
	if err != nil {
		return repository.Rating{}, repository.Stats{}, err
	}
	if p.Score < minScore || p.Score > maxScore {
		return repository.Rating{}, repository.Stats{}, apperr.Validation("score must be between 1 and 5")
	}
	if p.JobStatus != domain.JobCompleted {
		return repository.Rating{}, repository.Stats{}, domain.ErrJobNotCompleted
	}

	comment := sanitize.Text(p.Comment)
	if len(comment) > maxCommentLen {
		return repository.Rating{}, repository.Stats{}, apperr.Validation("comment is too long")
	}

	return s.repo.Insert(ctx, repository.Rating{
		ID:        uuid.New(),
		JobID:     p.JobID,
		RaterID:   p.RaterID,
		RateeID:   rateeID,
		Direction: direction,
		Score:     p.Score,
		Comment:   comment,
	})
}

// GetStats returns a user's rating count and average.
func (s *Service) GetStats(ctx context.Context, userID uuid.UUID) (repository.Stats, error) {
	return s.repo.GetStats(ctx, userID)
}

// ListForJob lists the ratings left on a job.
func (s *Service) ListForJob(ctx context.Context, jobID uuid.UUID) ([]repository.Rating, error) {
	return s.repo.ListForJob(ctx, jobID)
}
