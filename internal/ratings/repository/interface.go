package repository

import (
	"context"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

// Rating is one party's score of the other for a completed job.
type Rating struct {
	ID        uuid.UUID        `db:"id"`
	JobID     uuid.UUID        `db:"job_id"`
	RaterID   uuid.UUID        `db:"rater_id"`
	RateeID   uuid.UUID        `db:"ratee_id"`
	Direction domain.Direction `db:"direction"`
	Score     int              `db:"score"`
	Comment   string           `db:"comment"`
	CreatedAt time.Time        `db:"created_at"`
}

// Stats is a user's running rating aggregate.
type Stats struct {
	UserID  uuid.UUID `db:"user_id"`
	Count   int       `db:"rating_count"`
	Sum     int64     `db:"rating_sum"`
	Average float64   `db:"average"`
}

// Repository defines rating storage.
type Repository interface {
	// Insert stores a rating and folds it into the ratee's aggregate in one
	// commit. Fails with ErrAlreadyRated when the job already has a rating in
	// that direction.
	Insert(ctx context.Context, rating Rating) (Rating, Stats, error)
	GetStats(ctx context.Context, userID uuid.UUID) (Stats, error)
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]Rating, error)
}
