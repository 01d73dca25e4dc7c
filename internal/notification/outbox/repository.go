package outbox

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusEnqueued   Status = "enqueued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"

	defaultClaimLimit = 50
)

// ErrRecordNotFound is returned when an outbox row does not exist.
var ErrRecordNotFound = apperr.NotFound("outbox record not found").WithCode("outbox_record_not_found")

// Record is one notification queued for redelivery.
type Record struct {
	ID             uuid.UUID
	NotificationID uuid.UUID
	Status         Status
	Attempts       int
	RunAt          time.Time
	LastError      *string
}

// Store is the per-notification retry queue.
type Store interface {
	// Enqueue queues a notification for redelivery. A notification has at
	// most one outbox row; a failed row is reset to pending.
	Enqueue(ctx context.Context, notificationID uuid.UUID, lastError string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	// ClaimPending moves up to limit due rows to enqueued and returns them.
	ClaimPending(ctx context.Context, limit int) ([]Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Enqueue(ctx context.Context, notificationID uuid.UUID, lastError string) (uuid.UUID, error) {
	if notificationID == uuid.Nil {
		return uuid.Nil, errors.New("notificationId is required")
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notification_outbox (id, notification_id, status, last_error)
		 VALUES ($1, $2, 'pending', $3)
		 ON CONFLICT ON CONSTRAINT uq_notification_outbox_notification DO UPDATE
		 SET status = 'pending', last_error = EXCLUDED.last_error, run_at = now(), updated_at = now()
		 WHERE notification_outbox.status = 'failed'
		 RETURNING id`,
		uuid.New(), notificationID, lastError,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !db.IsNoRows(err) {
		return uuid.Nil, db.Unavailable("enqueue outbox", err)
	}

	// Already queued and not failed.
	if err := r.pool.QueryRow(ctx,
		`SELECT id FROM notification_outbox WHERE notification_id = $1`, notificationID,
	).Scan(&id); err != nil {
		return uuid.Nil, db.Unavailable("enqueue outbox", err)
	}
	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, notification_id, status, attempts, run_at, last_error
		 FROM notification_outbox
		 WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.NotificationID, &status, &rec.Attempts, &rec.RunAt, &rec.LastError)
	if err != nil {
		if db.IsNoRows(err) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, db.Unavailable("get outbox", err)
	}
	rec.Status = Status(status)
	return rec, nil
}

func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		limit = defaultClaimLimit
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, db.Unavailable("claim outbox", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM notification_outbox
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_outbox o
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.notification_id, o.status, o.attempts, o.run_at, o.last_error`, limit)
	if err != nil {
		return nil, db.Unavailable("claim outbox", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.NotificationID, &status, &rec.Attempts, &rec.RunAt, &rec.LastError); err != nil {
			return nil, db.Unavailable("claim outbox", err)
		}
		rec.Status = Status(status)
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, db.Unavailable("claim outbox", rows.Err())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.Unavailable("claim outbox", err)
	}
	return results, nil
}

func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = 'pending', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return db.Unavailable("mark outbox pending", err)
}

func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = 'processing', attempts = attempts + 1, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return db.Unavailable("mark outbox processing", err)
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = 'succeeded', last_error = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return db.Unavailable("mark outbox succeeded", err)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return db.Unavailable("mark outbox failed", err)
}
