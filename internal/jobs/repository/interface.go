package repository

import (
	"context"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

// Job is the unit of work created from an accepted quote.
type Job struct {
	ID                  uuid.UUID        `db:"id"`
	RequestID           uuid.UUID        `db:"request_id"`
	QuoteID             uuid.UUID        `db:"quote_id"`
	ClientID            uuid.UUID        `db:"client_id"`
	ProviderID          uuid.UUID        `db:"provider_id"`
	PriceCents          int64            `db:"price_cents"`
	Status              domain.JobStatus `db:"status"`
	EvidenceRefs        []string         `db:"evidence_refs"`
	StartedAt           *time.Time       `db:"started_at"`
	ProviderFinalizedAt *time.Time       `db:"provider_finalized_at"`
	CompletedAt         *time.Time       `db:"completed_at"`
	CancelledAt         *time.Time       `db:"cancelled_at"`
	CancelledBy         *domain.Role     `db:"cancelled_by"`
	CancellationNote    *string          `db:"cancellation_note"`
	CreatedAt           time.Time        `db:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at"`
}

// Parties returns the client and provider of the job.
func (j Job) Parties() domain.Parties {
	return domain.Parties{ClientID: j.ClientID, ProviderID: j.ProviderID}
}

// AwaitingConfirmation reports whether the provider has finalized and the
// client has not yet confirmed.
func (j Job) AwaitingConfirmation() bool {
	return j.Status == domain.JobInProgress && j.ProviderFinalizedAt != nil
}

// Repository defines job tracker storage. Transitions are conditional
// updates on the current status.
type Repository interface {
	// Create inserts a scheduled job. Fails with ErrJobAlreadyExists when a
	// job already references the quote.
	Create(ctx context.Context, job Job) (Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (Job, error)
	GetByQuote(ctx context.Context, quoteID uuid.UUID) (Job, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Job, error)

	// Start moves a scheduled job to in_progress. Already started jobs are
	// returned unchanged.
	Start(ctx context.Context, id uuid.UUID) (Job, error)
	// MarkProviderFinalized records the provider's completion claim. The job
	// is (or stays) in_progress awaiting client confirmation.
	MarkProviderFinalized(ctx context.Context, id uuid.UUID, evidenceRefs []string) (Job, error)
	// Complete moves a live job to completed.
	Complete(ctx context.Context, id uuid.UUID) (Job, error)
	// Cancel moves a live job to cancelled with an attributed note.
	Cancel(ctx context.Context, id uuid.UUID, by domain.Role, note string) (Job, error)
}
