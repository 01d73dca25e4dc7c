// Package service implements the quote ledger: service requests, provider
// invitations and the quotes bid against them.
package service

import (
	"context"
	"strings"

	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxPhotoRefs      = 10
	maxInvitesPerCall = 50
	maxDescriptionLen = 4000
	maxNotesLen       = 2000
)

// PhotoLinker turns a stored photo object key into a time-limited URL.
type PhotoLinker interface {
	PresignedURL(ctx context.Context, objectKey string) (string, error)
}

// PhotoLink pairs a photo reference with its download URL.
type PhotoLink struct {
	Ref string
	URL string
}

// Service provides the quote ledger.
type Service struct {
	repo   repository.Repository
	photos PhotoLinker
	log    *logger.Logger
}

// New creates a new quote ledger service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SetPhotoLinker enables presigned photo URLs on request reads.
func (s *Service) SetPhotoLinker(p PhotoLinker) {
	s.photos = p
}

// CreateRequestParams contains data for opening a service request.
type CreateRequestParams struct {
	ClientID    uuid.UUID
	ServiceID   uuid.UUID
	Description string
	PhotoRefs   []string
}

// SubmitQuoteParams contains a provider's bid.
type SubmitQuoteParams struct {
	RequestID        uuid.UUID
	ProviderID       uuid.UUID
	PriceCents       int64
	EstimatedMinutes int
	Notes            string
}

// CreateRequest opens a new pending request.
func (s *Service) CreateRequest(ctx context.Context, p CreateRequestParams) (repository.ServiceRequest, error) {
	if p.ClientID == uuid.Nil || p.ServiceID == uuid.Nil {
		return repository.ServiceRequest{}, apperr.Validation("clientId and serviceId are required")
	}

	description := sanitize.Text(p.Description)
	if description == "" {
		return repository.ServiceRequest{}, apperr.Validation("description is required")
	}
	if len(description) > maxDescriptionLen {
		return repository.ServiceRequest{}, apperr.Validation("description is too long")
	}

	refs := make([]string, 0, len(p.PhotoRefs))
	for _, ref := range p.PhotoRefs {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}
	if len(refs) > maxPhotoRefs {
		return repository.ServiceRequest{}, apperr.Validation("too many photo references")
	}

	return s.repo.CreateRequest(ctx, repository.ServiceRequest{
		ID:          uuid.New(),
		ClientID:    p.ClientID,
		ServiceID:   p.ServiceID,
		Description: description,
		PhotoRefs:   refs,
	})
}

// InviteProviders invites providers to bid and returns the newly invited ones.
func (s *Service) InviteProviders(ctx context.Context, requestID uuid.UUID, providerIDs []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(providerIDs))
	unique := make([]uuid.UUID, 0, len(providerIDs))
	for _, id := range providerIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, apperr.Validation("at least one providerId is required")
	}
	if len(unique) > maxInvitesPerCall {
		return nil, apperr.Validation("too many providers in one invitation batch")
	}

	return s.repo.AddInvitations(ctx, requestID, unique)
}

// SubmitQuote stores a provider's bid against an open request.
func (s *Service) SubmitQuote(ctx context.Context, p SubmitQuoteParams) (repository.Quote, error) {
	if p.RequestID == uuid.Nil || p.ProviderID == uuid.Nil {
		return repository.Quote{}, apperr.Validation("requestId and providerId are required")
	}
	if p.PriceCents <= 0 {
		return repository.Quote{}, apperr.Validation("price must be positive")
	}
	if p.EstimatedMinutes <= 0 {
		return repository.Quote{}, apperr.Validation("estimated duration must be positive")
	}

	notes := sanitize.Text(p.Notes)
	if len(notes) > maxNotesLen {
		return repository.Quote{}, apperr.Validation("notes are too long")
	}

	return s.repo.InsertQuote(ctx, repository.Quote{
		ID:               uuid.New(),
		RequestID:        p.RequestID,
		ProviderID:       p.ProviderID,
		PriceCents:       p.PriceCents,
		EstimatedMinutes: p.EstimatedMinutes,
		Notes:            notes,
	})
}

// AcceptQuote accepts quoteID and rejects every other open quote on the request.
// Callers must hold the request lock.
func (s *Service) AcceptQuote(ctx context.Context, requestID, quoteID uuid.UUID) (repository.AcceptResult, error) {
	return s.repo.AcceptQuote(ctx, requestID, quoteID)
}

// RejectQuote declines a single open quote without touching its siblings.
func (s *Service) RejectQuote(ctx context.Context, quoteID uuid.UUID) (repository.Quote, error) {
	return s.repo.RejectQuote(ctx, quoteID)
}

// CancelRequest withdraws an open request.
func (s *Service) CancelRequest(ctx context.Context, requestID uuid.UUID) (repository.CancelResult, error) {
	return s.repo.CancelRequest(ctx, requestID)
}

// GetRequest retrieves a request by ID.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (repository.ServiceRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// GetQuote retrieves a quote by ID.
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (repository.Quote, error) {
	return s.repo.GetQuote(ctx, id)
}

// ListQuotes lists a request's quotes.
func (s *Service) ListQuotes(ctx context.Context, requestID uuid.UUID) ([]repository.Quote, error) {
	return s.repo.ListQuotes(ctx, requestID)
}

// ListInvitees lists the providers invited to a request.
func (s *Service) ListInvitees(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.ListInvitees(ctx, requestID)
}

// ListRequestsByClient lists a client's requests.
func (s *Service) ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]repository.ServiceRequest, error) {
	return s.repo.ListRequestsByClient(ctx, clientID)
}

// ListRequestsForProvider lists the requests a provider was invited to.
func (s *Service) ListRequestsForProvider(ctx context.Context, providerID uuid.UUID) ([]repository.ServiceRequest, error) {
	return s.repo.ListRequestsForProvider(ctx, providerID)
}

// PhotoLinks resolves download URLs for a request's photos. Links that cannot
// be presigned are returned with an empty URL.
func (s *Service) PhotoLinks(ctx context.Context, req repository.ServiceRequest) []PhotoLink {
	links := make([]PhotoLink, 0, len(req.PhotoRefs))
	for _, ref := range req.PhotoRefs {
		link := PhotoLink{Ref: ref}
		if s.photos != nil {
			url, err := s.photos.PresignedURL(ctx, ref)
			if err != nil {
				s.log.Warn("presign request photo failed", "requestId", req.ID, "ref", ref, "error", err)
			} else {
				link.URL = url
			}
		}
		links = append(links, link)
	}
	return links
}
