package repository

import (
	"context"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uqRatingJobDirection = "uq_ratings_job_direction"

	insertRatingQuery = `
		INSERT INTO ratings (id, job_id, rater_id, ratee_id, direction, score, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, job_id, rater_id, ratee_id, direction, score, comment, created_at`

	// Every placeholder is bound once. Postgres rejects a parameter used
	// both bare and under a cast, since it infers two types for it.
	upsertStatsQuery = `
		INSERT INTO user_rating_stats (user_id, rating_count, rating_sum, average, updated_at)
		VALUES ($1, 1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			rating_count = user_rating_stats.rating_count + 1,
			rating_sum = user_rating_stats.rating_sum + EXCLUDED.rating_sum,
			average = (user_rating_stats.rating_sum + EXCLUDED.rating_sum)::double precision
				/ (user_rating_stats.rating_count + 1),
			updated_at = now()
		RETURNING user_id, rating_count, rating_sum, average`
)

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new ratings repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Insert stores the rating and upserts the ratee's running average.
func (r *Repo) Insert(ctx context.Context, rating Rating) (Rating, Stats, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Rating{}, Stats{}, db.Unavailable("begin rating tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var created Rating
	err = tx.QueryRow(ctx, insertRatingQuery,
		rating.ID, rating.JobID, rating.RaterID, rating.RateeID, rating.Direction, rating.Score, rating.Comment,
	).Scan(&created.ID, &created.JobID, &created.RaterID, &created.RateeID, &created.Direction,
		&created.Score, &created.Comment, &created.CreatedAt)
	if err != nil {
		return Rating{}, Stats{}, insertRatingError(err)
	}

	var stats Stats
	err = tx.QueryRow(ctx, upsertStatsQuery,
		created.RateeID, int64(created.Score), float64(created.Score),
	).Scan(&stats.UserID, &stats.Count, &stats.Sum, &stats.Average)
	if err != nil {
		return Rating{}, Stats{}, db.Unavailable("upsert rating stats", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Rating{}, Stats{}, db.Unavailable("commit rating tx", err)
	}
	return created, stats, nil
}

// insertRatingError maps a failed rating insert onto the domain errors.
func insertRatingError(err error) error {
	switch {
	case db.IsUniqueViolation(err, uqRatingJobDirection):
		return domain.ErrAlreadyRated
	case db.IsForeignKeyViolation(err):
		return domain.ErrJobNotFound
	default:
		return db.Unavailable("insert rating", err)
	}
}

// GetStats returns the user's aggregate, zero-valued when never rated.
func (r *Repo) GetStats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	stats := Stats{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT rating_count, rating_sum, average FROM user_rating_stats WHERE user_id = $1`, userID,
	).Scan(&stats.Count, &stats.Sum, &stats.Average)
	if err != nil && !db.IsNoRows(err) {
		return Stats{}, db.Unavailable("get rating stats", err)
	}
	return stats, nil
}

// ListForJob lists the ratings left on a job.
func (r *Repo) ListForJob(ctx context.Context, jobID uuid.UUID) ([]Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, rater_id, ratee_id, direction, score, comment, created_at
		FROM ratings WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, db.Unavailable("list ratings", err)
	}
	defer rows.Close()

	items := make([]Rating, 0, 2)
	for rows.Next() {
		var rt Rating
		if err := rows.Scan(&rt.ID, &rt.JobID, &rt.RaterID, &rt.RateeID, &rt.Direction, &rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, db.Unavailable("scan rating", err)
		}
		items = append(items, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("iterate ratings", err)
	}
	return items, nil
}
