package repository

import (
	"context"

	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
)

var (
	ErrServiceTypeNotFound = apperr.NotFound("service type not found")
	ErrUserNotFound        = apperr.NotFound("user not found")
)

// ServiceType is a bookable kind of work, e.g. plumbing.
type ServiceType struct {
	ID       uuid.UUID `db:"id"`
	Name     string    `db:"name"`
	IsActive bool      `db:"is_active"`
}

// Contact is the reachable identity of a marketplace user.
type Contact struct {
	UserID      uuid.UUID `db:"id"`
	DisplayName string    `db:"display_name"`
	Email       string    `db:"email"`
	Phone       string    `db:"phone"`
	Role        string    `db:"role"`
}

// Repository reads catalog data.
type Repository interface {
	GetServiceType(ctx context.Context, id uuid.UUID) (ServiceType, error)
	GetContact(ctx context.Context, userID uuid.UUID) (Contact, error)
}
