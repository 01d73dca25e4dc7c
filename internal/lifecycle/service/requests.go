package service

import (
	"context"
	"errors"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/events"
	jobrepo "marketplace_backend/internal/jobs/repository"
	jobsvc "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/notification"
	quoterepo "marketplace_backend/internal/quotes/repository"
	quotesvc "marketplace_backend/internal/quotes/service"

	"github.com/google/uuid"
)

// CreateRequestInput is a client's new service request.
type CreateRequestInput struct {
	ServiceID   uuid.UUID
	Description string
	PhotoRefs   []string
}

// SubmitQuoteInput is a provider's bid.
type SubmitQuoteInput struct {
	PriceCents       int64
	EstimatedMinutes int
	Notes            string
}

// AcceptOutcome is the committed result of accepting a quote.
type AcceptOutcome struct {
	Request  quoterepo.ServiceRequest
	Accepted quoterepo.Quote
	Rejected []quoterepo.Quote
	Job      jobrepo.Job
}

// CreateRequest opens a service request for the calling client.
func (s *Service) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (quoterepo.ServiceRequest, error) {
	if err := requireRole(actor, domain.RoleClient); err != nil {
		return quoterepo.ServiceRequest{}, err
	}

	req, err := s.quotes.CreateRequest(ctx, quotesvc.CreateRequestParams{
		ClientID:    actor.UserID,
		ServiceID:   in.ServiceID,
		Description: in.Description,
		PhotoRefs:   in.PhotoRefs,
	})
	if err != nil {
		return quoterepo.ServiceRequest{}, err
	}

	s.complete(ctx, opCreateRequest, transition{
		event: events.RequestCreated{
			BaseEvent: events.NewBaseEvent(),
			RequestID: req.ID,
			ClientID:  req.ClientID,
			ServiceID: req.ServiceID,
		},
		attrs: []any{"requestId", req.ID},
	})
	return req, nil
}

// InviteProviders invites providers to bid. Only providers that were not
// already invited are notified.
func (s *Service) InviteProviders(ctx context.Context, actor Actor, requestID uuid.UUID, providerIDs []uuid.UUID) ([]uuid.UUID, error) {
	var added []uuid.UUID
	err := s.run(ctx, opInviteProviders, requestID, func(ctx context.Context) (transition, error) {
		req, err := s.ownedRequest(ctx, actor, requestID)
		if err != nil {
			return transition{}, err
		}

		invitees := make([]uuid.UUID, 0, len(providerIDs))
		for _, id := range providerIDs {
			if id != req.ClientID {
				invitees = append(invitees, id)
			}
		}

		added, err = s.quotes.InviteProviders(ctx, requestID, invitees)
		if err != nil {
			return transition{}, err
		}

		return transition{
			emissions: inviteEmissions(req, added),
			event: events.ProvidersInvited{
				BaseEvent:   events.NewBaseEvent(),
				RequestID:   req.ID,
				ClientID:    req.ClientID,
				ProviderIDs: added,
			},
			attrs: []any{"requestId", req.ID, "invited", len(added)},
		}, nil
	})
	return added, err
}

// SubmitQuote records the calling provider's bid and tells the client.
func (s *Service) SubmitQuote(ctx context.Context, actor Actor, requestID uuid.UUID, in SubmitQuoteInput) (quoterepo.Quote, error) {
	if err := requireRole(actor, domain.RoleProvider); err != nil {
		return quoterepo.Quote{}, err
	}

	var quote quoterepo.Quote
	err := s.run(ctx, opSubmitQuote, requestID, func(ctx context.Context) (transition, error) {
		req, err := s.quotes.GetRequest(ctx, requestID)
		if err != nil {
			return transition{}, err
		}
		if req.ClientID == actor.UserID {
			return transition{}, domain.ErrNotParticipant
		}

		quote, err = s.quotes.SubmitQuote(ctx, quotesvc.SubmitQuoteParams{
			RequestID:        requestID,
			ProviderID:       actor.UserID,
			PriceCents:       in.PriceCents,
			EstimatedMinutes: in.EstimatedMinutes,
			Notes:            in.Notes,
		})
		if err != nil {
			return transition{}, err
		}

		return transition{
			emissions: []notification.Emission{submitEmission(req, quote)},
			event: events.QuoteSubmitted{
				BaseEvent:  events.NewBaseEvent(),
				RequestID:  req.ID,
				QuoteID:    quote.ID,
				ClientID:   req.ClientID,
				ProviderID: quote.ProviderID,
				PriceCents: quote.PriceCents,
			},
			attrs: []any{"requestId", req.ID, "quoteId", quote.ID},
		}, nil
	})
	return quote, err
}

// AcceptQuote accepts one quote, rejects its open siblings and creates the
// job. A retry after the ledger committed but before the job was created
// completes the job instead of failing.
func (s *Service) AcceptQuote(ctx context.Context, actor Actor, requestID, quoteID uuid.UUID) (AcceptOutcome, error) {
	var out AcceptOutcome
	err := s.run(ctx, opAcceptQuote, requestID, func(ctx context.Context) (transition, error) {
		req, err := s.ownedRequest(ctx, actor, requestID)
		if err != nil {
			return transition{}, err
		}

		res, err := s.quotes.AcceptQuote(ctx, requestID, quoteID)
		if errors.Is(err, domain.ErrQuoteNotOpen) {
			res, err = s.recoverAccept(ctx, req, quoteID)
		}
		if err != nil {
			return transition{}, err
		}

		job, err := s.ensureJob(ctx, res)
		if err != nil {
			return transition{}, err
		}

		quotes, err := s.quotes.ListQuotes(ctx, requestID)
		if err != nil {
			return transition{}, err
		}

		out = AcceptOutcome{Request: res.Request, Accepted: res.Accepted, Rejected: res.Rejected, Job: job}

		rejectedIDs := make([]uuid.UUID, 0, len(res.Rejected))
		for _, q := range res.Rejected {
			rejectedIDs = append(rejectedIDs, q.ID)
		}
		return transition{
			emissions: acceptEmissions(res, quotes, job),
			event: events.QuoteAccepted{
				BaseEvent:        events.NewBaseEvent(),
				RequestID:        req.ID,
				QuoteID:          res.Accepted.ID,
				JobID:            job.ID,
				ClientID:         req.ClientID,
				ProviderID:       res.Accepted.ProviderID,
				RejectedQuoteIDs: rejectedIDs,
				Invitees:         res.Invitees,
			},
			attrs: []any{"requestId", req.ID, "quoteId", res.Accepted.ID, "jobId", job.ID, "rejected", len(res.Rejected)},
		}, nil
	})
	return out, err
}

// recoverAccept rebuilds the accept result when the quote is already
// accepted but has no job. Any other closed quote stays ErrQuoteNotOpen.
func (s *Service) recoverAccept(ctx context.Context, req quoterepo.ServiceRequest, quoteID uuid.UUID) (quoterepo.AcceptResult, error) {
	q, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return quoterepo.AcceptResult{}, err
	}
	if q.RequestID != req.ID {
		return quoterepo.AcceptResult{}, domain.ErrQuoteNotFound
	}
	if q.Status != domain.QuoteAccepted {
		return quoterepo.AcceptResult{}, domain.ErrQuoteNotOpen
	}

	_, err = s.jobs.GetByQuote(ctx, q.ID)
	if err == nil {
		return quoterepo.AcceptResult{}, domain.ErrQuoteNotOpen
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return quoterepo.AcceptResult{}, err
	}

	quotes, err := s.quotes.ListQuotes(ctx, req.ID)
	if err != nil {
		return quoterepo.AcceptResult{}, err
	}
	invitees, err := s.quotes.ListInvitees(ctx, req.ID)
	if err != nil {
		return quoterepo.AcceptResult{}, err
	}

	rejected := make([]quoterepo.Quote, 0, len(quotes))
	for _, other := range quotes {
		if other.ID != q.ID && other.Status == domain.QuoteRejected {
			rejected = append(rejected, other)
		}
	}

	s.log.WithContext(ctx).Warn("recovering job for accepted quote", "requestId", req.ID, "quoteId", q.ID)
	return quoterepo.AcceptResult{Request: req, Accepted: q, Rejected: rejected, Invitees: invitees}, nil
}

// ensureJob creates the job for the accepted quote, or returns the one a
// concurrent accept already created.
func (s *Service) ensureJob(ctx context.Context, res quoterepo.AcceptResult) (jobrepo.Job, error) {
	job, err := s.jobs.CreateJob(ctx, jobsvc.CreateJobParams{
		RequestID:  res.Request.ID,
		QuoteID:    res.Accepted.ID,
		ClientID:   res.Request.ClientID,
		ProviderID: res.Accepted.ProviderID,
		PriceCents: res.Accepted.PriceCents,
	})
	if errors.Is(err, domain.ErrJobAlreadyExists) {
		return s.jobs.GetByQuote(ctx, res.Accepted.ID)
	}
	return job, err
}

// RejectQuote declines one quote on behalf of the request's client.
func (s *Service) RejectQuote(ctx context.Context, actor Actor, quoteID uuid.UUID) (quoterepo.Quote, error) {
	current, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return quoterepo.Quote{}, err
	}

	var quote quoterepo.Quote
	err = s.run(ctx, opRejectQuote, current.RequestID, func(ctx context.Context) (transition, error) {
		req, err := s.ownedRequest(ctx, actor, current.RequestID)
		if err != nil {
			return transition{}, err
		}

		quote, err = s.quotes.RejectQuote(ctx, quoteID)
		if err != nil {
			return transition{}, err
		}

		return transition{
			emissions: []notification.Emission{rejectEmission(req, quote)},
			event: events.QuoteRejected{
				BaseEvent:  events.NewBaseEvent(),
				RequestID:  req.ID,
				QuoteID:    quote.ID,
				ClientID:   req.ClientID,
				ProviderID: quote.ProviderID,
			},
			attrs: []any{"requestId", req.ID, "quoteId", quote.ID},
		}, nil
	})
	return quote, err
}

// CancelRequest withdraws an open request and tells every invited provider.
func (s *Service) CancelRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (quoterepo.ServiceRequest, error) {
	var req quoterepo.ServiceRequest
	err := s.run(ctx, opCancelRequest, requestID, func(ctx context.Context) (transition, error) {
		if _, err := s.ownedRequest(ctx, actor, requestID); err != nil {
			return transition{}, err
		}

		res, err := s.quotes.CancelRequest(ctx, requestID)
		if err != nil {
			return transition{}, err
		}
		req = res.Request

		return transition{
			emissions: cancelRequestEmissions(res),
			event: events.RequestCancelled{
				BaseEvent: events.NewBaseEvent(),
				RequestID: req.ID,
				ClientID:  req.ClientID,
				Invitees:  res.Invitees,
			},
			attrs: []any{"requestId", req.ID, "rejected", len(res.Rejected)},
		}, nil
	})
	return req, err
}

// ownedRequest loads a request and checks the actor is its client.
func (s *Service) ownedRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (quoterepo.ServiceRequest, error) {
	req, err := s.quotes.GetRequest(ctx, requestID)
	if err != nil {
		return quoterepo.ServiceRequest{}, err
	}
	if req.ClientID != actor.UserID {
		return quoterepo.ServiceRequest{}, domain.ErrNotParticipant
	}
	return req, nil
}
