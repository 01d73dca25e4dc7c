package service

import (
	"context"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/events"
	jobrepo "marketplace_backend/internal/jobs/repository"
	"marketplace_backend/internal/notification"
	quoterepo "marketplace_backend/internal/quotes/repository"
	ratingrepo "marketplace_backend/internal/ratings/repository"
	ratingsvc "marketplace_backend/internal/ratings/service"

	"github.com/google/uuid"
)

// RateInput is one party's rating of the other.
type RateInput struct {
	Score   int
	Comment string
}

// StartJob lets the job's provider begin work.
func (s *Service) StartJob(ctx context.Context, actor Actor, jobID uuid.UUID) (jobrepo.Job, error) {
	current, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return jobrepo.Job{}, err
	}
	if current.ProviderID != actor.UserID {
		return jobrepo.Job{}, domain.ErrNotParticipant
	}

	var job jobrepo.Job
	err = s.run(ctx, opStartJob, current.RequestID, func(ctx context.Context) (transition, error) {
		job, err = s.jobs.Start(ctx, jobID)
		if err != nil {
			return transition{}, err
		}
		return transition{
			event: events.JobStarted{
				BaseEvent:  events.NewBaseEvent(),
				JobID:      job.ID,
				RequestID:  job.RequestID,
				ClientID:   job.ClientID,
				ProviderID: job.ProviderID,
			},
			attrs: []any{"requestId", job.RequestID, "jobId", job.ID},
		}, nil
	})
	return job, err
}

// FinalizeJob records the caller's completion. The provider's finalize asks
// the client to confirm; the client's finalize completes the job and asks
// both parties to rate.
func (s *Service) FinalizeJob(ctx context.Context, actor Actor, jobID uuid.UUID, evidenceRefs []string) (jobrepo.Job, error) {
	current, req, err := s.jobContext(ctx, jobID)
	if err != nil {
		return jobrepo.Job{}, err
	}
	role, ok := current.Parties().RoleOf(actor.UserID)
	if !ok {
		return jobrepo.Job{}, domain.ErrNotParticipant
	}

	var job jobrepo.Job
	err = s.run(ctx, opFinalizeJob, current.RequestID, func(ctx context.Context) (transition, error) {
		job, err = s.jobs.Finalize(ctx, jobID, role, evidenceRefs)
		if err != nil {
			return transition{}, err
		}
		return transition{
			emissions: finalizeEmissions(req, job, role),
			event: events.JobFinalized{
				BaseEvent:  events.NewBaseEvent(),
				JobID:      job.ID,
				RequestID:  job.RequestID,
				ClientID:   job.ClientID,
				ProviderID: job.ProviderID,
				Role:       string(role),
				Completed:  job.Status == domain.JobCompleted,
			},
			attrs: []any{"requestId", job.RequestID, "jobId", job.ID, "role", role, "status", job.Status},
		}, nil
	})
	return job, err
}

// CancelJob cancels a live job with a reason shown to the other party.
func (s *Service) CancelJob(ctx context.Context, actor Actor, jobID uuid.UUID, reason string) (jobrepo.Job, error) {
	current, req, err := s.jobContext(ctx, jobID)
	if err != nil {
		return jobrepo.Job{}, err
	}
	role, ok := current.Parties().RoleOf(actor.UserID)
	if !ok {
		return jobrepo.Job{}, domain.ErrNotParticipant
	}

	var job jobrepo.Job
	err = s.run(ctx, opCancelJob, current.RequestID, func(ctx context.Context) (transition, error) {
		job, err = s.jobs.Cancel(ctx, jobID, role, reason)
		if err != nil {
			return transition{}, err
		}
		note := ""
		if job.CancellationNote != nil {
			note = *job.CancellationNote
		}
		return transition{
			emissions: []notification.Emission{cancelJobEmission(req, job, role)},
			event: events.JobCancelled{
				BaseEvent:   events.NewBaseEvent(),
				JobID:       job.ID,
				RequestID:   job.RequestID,
				ClientID:    job.ClientID,
				ProviderID:  job.ProviderID,
				CancelledBy: string(role),
				Reason:      note,
			},
			attrs: []any{"requestId", job.RequestID, "jobId", job.ID, "cancelledBy", role},
		}, nil
	})
	return job, err
}

// Rate records the caller's rating of the other party on a completed job.
func (s *Service) Rate(ctx context.Context, actor Actor, jobID uuid.UUID, in RateInput) (ratingrepo.Rating, ratingrepo.Stats, error) {
	current, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return ratingrepo.Rating{}, ratingrepo.Stats{}, err
	}

	var (
		rating ratingrepo.Rating
		stats  ratingrepo.Stats
	)
	err = s.run(ctx, opRateJob, current.RequestID, func(ctx context.Context) (transition, error) {
		job, err := s.jobs.GetJob(ctx, jobID)
		if err != nil {
			return transition{}, err
		}

		rating, stats, err = s.ratings.Rate(ctx, ratingsvc.RateParams{
			JobID:     job.ID,
			JobStatus: job.Status,
			Parties:   job.Parties(),
			RaterID:   actor.UserID,
			Score:     in.Score,
			Comment:   in.Comment,
		})
		if err != nil {
			return transition{}, err
		}
		return transition{
			event: events.JobRated{
				BaseEvent: events.NewBaseEvent(),
				JobID:     job.ID,
				RaterID:   rating.RaterID,
				RateeID:   rating.RateeID,
				Score:     rating.Score,
			},
			attrs: []any{"requestId", job.RequestID, "jobId", job.ID, "direction", rating.Direction},
		}, nil
	})
	return rating, stats, err
}

// jobContext loads a job and its request. Both are read before the lock;
// the request id of a job never changes.
func (s *Service) jobContext(ctx context.Context, jobID uuid.UUID) (jobrepo.Job, quoterepo.ServiceRequest, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return jobrepo.Job{}, quoterepo.ServiceRequest{}, err
	}
	req, err := s.quotes.GetRequest(ctx, job.RequestID)
	if err != nil {
		return jobrepo.Job{}, quoterepo.ServiceRequest{}, err
	}
	return job, req, nil
}
