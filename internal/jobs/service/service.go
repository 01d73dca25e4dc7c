// Package service implements the job tracker.
package service

import (
	"context"
	"strings"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/jobs/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxReasonLen    = 1000
	maxEvidenceRefs = 20
)

// Service tracks jobs created from accepted quotes.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new job tracker service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateJobParams carries the accepted quote a job is created from.
type CreateJobParams struct {
	RequestID  uuid.UUID
	QuoteID    uuid.UUID
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	PriceCents int64
}

// CreateJob creates a scheduled job for an accepted quote.
func (s *Service) CreateJob(ctx context.Context, p CreateJobParams) (repository.Job, error) {
	if p.RequestID == uuid.Nil || p.QuoteID == uuid.Nil || p.ClientID == uuid.Nil || p.ProviderID == uuid.Nil {
		return repository.Job{}, apperr.Validation("job requires request, quote, client and provider")
	}
	return s.repo.Create(ctx, repository.Job{
		ID:         uuid.New(),
		RequestID:  p.RequestID,
		QuoteID:    p.QuoteID,
		ClientID:   p.ClientID,
		ProviderID: p.ProviderID,
		PriceCents: p.PriceCents,
	})
}

// Start marks a scheduled job as in progress.
func (s *Service) Start(ctx context.Context, jobID uuid.UUID) (repository.Job, error) {
	return s.repo.Start(ctx, jobID)
}

// Finalize records a party's completion. The provider's finalize leaves the
// job awaiting client confirmation; the client's finalize completes it.
func (s *Service) Finalize(ctx context.Context, jobID uuid.UUID, role domain.Role, evidenceRefs []string) (repository.Job, error) {
	switch role {
	case domain.RoleProvider:
		refs := trimRefs(evidenceRefs)
		if len(refs) > maxEvidenceRefs {
			return repository.Job{}, apperr.Validation("too many evidence references")
		}
		return s.repo.MarkProviderFinalized(ctx, jobID, refs)
	case domain.RoleClient:
		return s.repo.Complete(ctx, jobID)
	default:
		return repository.Job{}, apperr.Validation("finalize requires the client or provider role")
	}
}

// Cancel cancels a live job. A terminal job fails with ErrJobTerminal
// whatever the reason; a live one needs a non-blank reason.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID, role domain.Role, reason string) (repository.Job, error) {
	if role != domain.RoleClient && role != domain.RoleProvider {
		return repository.Job{}, apperr.Validation("cancel requires the client or provider role")
	}
	current, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return repository.Job{}, err
	}
	if current.Status.IsTerminal() {
		return repository.Job{}, domain.ErrJobTerminal
	}
	note := sanitize.Text(reason)
	if note == "" {
		return repository.Job{}, domain.ErrReasonRequired
	}
	if len(note) > maxReasonLen {
		return repository.Job{}, apperr.Validation("cancellation reason is too long")
	}
	return s.repo.Cancel(ctx, jobID, role, note)
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (repository.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByQuote retrieves the job created from a quote.
func (s *Service) GetByQuote(ctx context.Context, quoteID uuid.UUID) (repository.Job, error) {
	return s.repo.GetByQuote(ctx, quoteID)
}

// ListForUser lists the jobs a user is party to.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.Job, error) {
	return s.repo.ListForUser(ctx, userID)
}

func trimRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
