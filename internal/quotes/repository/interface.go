package repository

import (
	"context"
	"time"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

// ServiceRequest is a client's ask for work in one service category.
type ServiceRequest struct {
	ID          uuid.UUID            `db:"id"`
	ClientID    uuid.UUID            `db:"client_id"`
	ServiceID   uuid.UUID            `db:"service_id"`
	Description string               `db:"description"`
	PhotoRefs   []string             `db:"photo_refs"`
	Status      domain.RequestStatus `db:"status"`
	CreatedAt   time.Time            `db:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at"`
}

// Quote is one provider's bid against a ServiceRequest.
type Quote struct {
	ID               uuid.UUID          `db:"id"`
	RequestID        uuid.UUID          `db:"request_id"`
	ProviderID       uuid.UUID          `db:"provider_id"`
	PriceCents       int64              `db:"price_cents"`
	EstimatedMinutes int                `db:"estimated_minutes"`
	Notes            string             `db:"notes"`
	Status           domain.QuoteStatus `db:"status"`
	CreatedAt        time.Time          `db:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"`
}

// AcceptResult is the outcome of accepting one quote on a request.
type AcceptResult struct {
	Request  ServiceRequest
	Accepted Quote
	// Rejected holds the quotes that were open and are now rejected.
	Rejected []Quote
	// Invitees is every provider that was invited to or bid on the request.
	Invitees []uuid.UUID
}

// CancelResult is the outcome of withdrawing a request.
type CancelResult struct {
	Request  ServiceRequest
	Rejected []Quote
	Invitees []uuid.UUID
}

// Repository defines quote ledger storage. Every mutating method is a single
// atomic commit guarded by a status predicate.
type Repository interface {
	CreateRequest(ctx context.Context, req ServiceRequest) (ServiceRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (ServiceRequest, error)
	ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]ServiceRequest, error)
	ListRequestsForProvider(ctx context.Context, providerID uuid.UUID) ([]ServiceRequest, error)

	// AddInvitations records invitations and returns only the providers that
	// were not already invited. Fails with ErrRequestNotOpen unless the
	// request is pending or quoting.
	AddInvitations(ctx context.Context, requestID uuid.UUID, providerIDs []uuid.UUID) ([]uuid.UUID, error)
	ListInvitees(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error)

	// InsertQuote stores an open quote, records the provider as invited and
	// moves a pending request to quoting.
	InsertQuote(ctx context.Context, quote Quote) (Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (Quote, error)
	ListQuotes(ctx context.Context, requestID uuid.UUID) ([]Quote, error)

	AcceptQuote(ctx context.Context, requestID, quoteID uuid.UUID) (AcceptResult, error)
	RejectQuote(ctx context.Context, quoteID uuid.UUID) (Quote, error)
	CancelRequest(ctx context.Context, requestID uuid.UUID) (CancelResult, error)
}
