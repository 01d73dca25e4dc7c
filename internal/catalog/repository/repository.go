package repository

import (
	"context"

	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetServiceType(ctx context.Context, id uuid.UUID) (ServiceType, error) {
	var st ServiceType
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_active FROM service_types WHERE id = $1`, id).
		Scan(&st.ID, &st.Name, &st.IsActive)
	if err != nil {
		if db.IsNoRows(err) {
			return ServiceType{}, ErrServiceTypeNotFound
		}
		return ServiceType{}, db.Unavailable("get service type", err)
	}
	return st, nil
}

func (r *Repo) GetContact(ctx context.Context, userID uuid.UUID) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, COALESCE(email, ''), COALESCE(phone, ''), role
		FROM users WHERE id = $1`, userID).
		Scan(&c.UserID, &c.DisplayName, &c.Email, &c.Phone, &c.Role)
	if err != nil {
		if db.IsNoRows(err) {
			return Contact{}, ErrUserNotFound
		}
		return Contact{}, db.Unavailable("get contact", err)
	}
	return c, nil
}
