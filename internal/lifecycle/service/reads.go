package service

import (
	"context"
	"slices"

	"marketplace_backend/internal/domain"
	jobrepo "marketplace_backend/internal/jobs/repository"
	quoterepo "marketplace_backend/internal/quotes/repository"
	quotesvc "marketplace_backend/internal/quotes/service"
	ratingrepo "marketplace_backend/internal/ratings/repository"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
)

// RequestView is a request with presigned photo links.
type RequestView struct {
	Request quoterepo.ServiceRequest
	Photos  []quotesvc.PhotoLink
}

// GetRequest returns a request to its client, an invited provider or an admin.
func (s *Service) GetRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (RequestView, error) {
	req, err := s.quotes.GetRequest(ctx, requestID)
	if err != nil {
		return RequestView{}, err
	}
	if err := s.canViewRequest(ctx, actor, req); err != nil {
		return RequestView{}, err
	}
	return RequestView{Request: req, Photos: s.quotes.PhotoLinks(ctx, req)}, nil
}

// ListRequests lists the caller's own requests, or for a provider the
// requests they were invited to.
func (s *Service) ListRequests(ctx context.Context, actor Actor) ([]quoterepo.ServiceRequest, error) {
	switch actor.Role {
	case domain.RoleClient:
		return s.quotes.ListRequestsByClient(ctx, actor.UserID)
	case domain.RoleProvider:
		return s.quotes.ListRequestsForProvider(ctx, actor.UserID)
	default:
		return nil, apperr.Forbidden("listing requests requires the client or provider role")
	}
}

// ListQuotes returns every quote to the request's client and admins, and
// only their own quotes to providers.
func (s *Service) ListQuotes(ctx context.Context, actor Actor, requestID uuid.UUID) ([]quoterepo.Quote, error) {
	req, err := s.quotes.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.canViewRequest(ctx, actor, req); err != nil {
		return nil, err
	}

	quotes, err := s.quotes.ListQuotes(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ClientID == actor.UserID || actor.isAdmin() {
		return quotes, nil
	}

	own := make([]quoterepo.Quote, 0, 1)
	for _, q := range quotes {
		if q.ProviderID == actor.UserID {
			own = append(own, q)
		}
	}
	return own, nil
}

// GetJob returns a job to either party or an admin.
func (s *Service) GetJob(ctx context.Context, actor Actor, jobID uuid.UUID) (jobrepo.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return jobrepo.Job{}, err
	}
	if _, ok := job.Parties().RoleOf(actor.UserID); !ok && !actor.isAdmin() {
		return jobrepo.Job{}, domain.ErrNotParticipant
	}
	return job, nil
}

// ListJobs lists the jobs the caller is a party to.
func (s *Service) ListJobs(ctx context.Context, actor Actor) ([]jobrepo.Job, error) {
	return s.jobs.ListForUser(ctx, actor.UserID)
}

// ListJobRatings returns the ratings left on a job.
func (s *Service) ListJobRatings(ctx context.Context, actor Actor, jobID uuid.UUID) ([]ratingrepo.Rating, error) {
	if _, err := s.GetJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.ratings.ListForJob(ctx, jobID)
}

// GetUserRating returns a user's rating aggregate.
func (s *Service) GetUserRating(ctx context.Context, userID uuid.UUID) (ratingrepo.Stats, error) {
	return s.ratings.GetStats(ctx, userID)
}

func (s *Service) canViewRequest(ctx context.Context, actor Actor, req quoterepo.ServiceRequest) error {
	if req.ClientID == actor.UserID || actor.isAdmin() {
		return nil
	}
	if actor.Role != domain.RoleProvider {
		return domain.ErrNotParticipant
	}
	invitees, err := s.quotes.ListInvitees(ctx, req.ID)
	if err != nil {
		return err
	}
	if !slices.Contains(invitees, actor.UserID) {
		return domain.ErrNotParticipant
	}
	return nil
}
