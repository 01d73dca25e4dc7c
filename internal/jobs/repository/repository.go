package repository

import (
	"context"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	jobColumns = `id, request_id, quote_id, client_id, provider_id, price_cents, status, evidence_refs,
		started_at, provider_finalized_at, completed_at, cancelled_at, cancelled_by, cancellation_note,
		created_at, updated_at`

	uqJobQuote = "uq_jobs_quote"
)

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new job tracker repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.RequestID, &j.QuoteID, &j.ClientID, &j.ProviderID, &j.PriceCents, &j.Status, &j.EvidenceRefs,
		&j.StartedAt, &j.ProviderFinalizedAt, &j.CompletedAt, &j.CancelledAt, &j.CancelledBy, &j.CancellationNote,
		&j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

// Create inserts a scheduled job.
func (r *Repo) Create(ctx context.Context, job Job) (Job, error) {
	query := `
		INSERT INTO jobs (id, request_id, quote_id, client_id, provider_id, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + jobColumns

	created, err := scanJob(r.pool.QueryRow(ctx, query,
		job.ID, job.RequestID, job.QuoteID, job.ClientID, job.ProviderID, job.PriceCents, domain.JobScheduled,
	))
	if err != nil {
		return Job{}, createJobError(err)
	}
	return created, nil
}

// createJobError maps a failed job insert onto the domain errors. A foreign
// key miss means the quote or request row does not exist.
func createJobError(err error) error {
	switch {
	case db.IsUniqueViolation(err, uqJobQuote):
		return domain.ErrJobAlreadyExists
	case db.IsForeignKeyViolation(err):
		return domain.ErrQuoteNotFound
	default:
		return db.Unavailable("create job", err)
	}
}

// GetByID retrieves a job by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Job{}, domain.ErrJobNotFound
		}
		return Job{}, db.Unavailable("get job", err)
	}
	return job, nil
}

// GetByQuote retrieves the job created from a quote.
func (r *Repo) GetByQuote(ctx context.Context, quoteID uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE quote_id = $1`, quoteID))
	if err != nil {
		if db.IsNoRows(err) {
			return Job{}, domain.ErrJobNotFound
		}
		return Job{}, db.Unavailable("get job by quote", err)
	}
	return job, nil
}

// ListForUser lists jobs where the user is either party.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE client_id = $1 OR provider_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, db.Unavailable("list jobs", err)
	}
	defer rows.Close()

	items := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, db.Unavailable("scan job", err)
		}
		items = append(items, job)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("iterate jobs", err)
	}
	return items, nil
}

// Start moves a scheduled job to in_progress.
func (r *Repo) Start(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $2, started_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+jobColumns, id, domain.JobInProgress, domain.JobScheduled))
	if err == nil {
		return job, nil
	}
	if !db.IsNoRows(err) {
		return Job{}, db.Unavailable("start job", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if current.Status == domain.JobInProgress {
		return current, nil
	}
	return Job{}, domain.ErrJobTerminal
}

// MarkProviderFinalized records the provider's completion claim.
func (r *Repo) MarkProviderFinalized(ctx context.Context, id uuid.UUID, evidenceRefs []string) (Job, error) {
	if evidenceRefs == nil {
		evidenceRefs = []string{}
	}
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status = $2,
			started_at = COALESCE(started_at, now()),
			provider_finalized_at = COALESCE(provider_finalized_at, now()),
			evidence_refs = evidence_refs || $5::text[],
			updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+jobColumns, id, domain.JobInProgress, domain.JobScheduled, domain.JobInProgress, evidenceRefs))
	if err != nil {
		return Job{}, r.transitionMiss(ctx, id, err, "provider finalize job")
	}
	return job, nil
}

// Complete moves a live job to completed.
func (r *Repo) Complete(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+jobColumns, id, domain.JobCompleted, domain.JobScheduled, domain.JobInProgress))
	if err != nil {
		return Job{}, r.transitionMiss(ctx, id, err, "complete job")
	}
	return job, nil
}

// Cancel moves a live job to cancelled.
func (r *Repo) Cancel(ctx context.Context, id uuid.UUID, by domain.Role, note string) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $2, cancelled_at = now(), cancelled_by = $3, cancellation_note = $4, updated_at = now()
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING `+jobColumns, id, domain.JobCancelled, by, note, domain.JobScheduled, domain.JobInProgress))
	if err != nil {
		return Job{}, r.transitionMiss(ctx, id, err, "cancel job")
	}
	return job, nil
}

// transitionMiss resolves a conditional update that matched no row into
// ErrJobNotFound or ErrJobTerminal.
func (r *Repo) transitionMiss(ctx context.Context, id uuid.UUID, err error, op string) error {
	if !db.IsNoRows(err) {
		return db.Unavailable(op, err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrJobTerminal
}
