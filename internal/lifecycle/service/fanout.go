package service

import (
	"marketplace_backend/internal/domain"
	jobrepo "marketplace_backend/internal/jobs/repository"
	"marketplace_backend/internal/notification"
	quoterepo "marketplace_backend/internal/quotes/repository"

	"github.com/google/uuid"
)

func requestPayload(req quoterepo.ServiceRequest) map[string]any {
	return map[string]any{
		notification.PayloadRequestID: req.ID,
		notification.PayloadServiceID: req.ServiceID,
	}
}

func quotePayload(req quoterepo.ServiceRequest, q quoterepo.Quote) map[string]any {
	p := requestPayload(req)
	p[notification.PayloadQuoteID] = q.ID
	p[notification.PayloadPriceCents] = q.PriceCents
	return p
}

func jobPayload(req quoterepo.ServiceRequest, job jobrepo.Job) map[string]any {
	p := requestPayload(req)
	p[notification.PayloadJobID] = job.ID
	return p
}

func inviteEmissions(req quoterepo.ServiceRequest, invited []uuid.UUID) []notification.Emission {
	out := make([]notification.Emission, 0, len(invited))
	for _, providerID := range invited {
		p := requestPayload(req)
		p[notification.PayloadActorID] = req.ClientID
		out = append(out, notification.Emission{
			Kind:          domain.KindNewQuoteRequest,
			RecipientID:   providerID,
			ReferenceKind: domain.RefRequest,
			ReferenceID:   req.ID,
			Payload:       p,
		})
	}
	return out
}

func submitEmission(req quoterepo.ServiceRequest, q quoterepo.Quote) notification.Emission {
	p := quotePayload(req, q)
	p[notification.PayloadActorID] = q.ProviderID
	return notification.Emission{
		Kind:          domain.KindNewQuoteReceived,
		RecipientID:   req.ClientID,
		ReferenceKind: domain.RefQuote,
		ReferenceID:   q.ID,
		Payload:       p,
	}
}

func rejectEmission(req quoterepo.ServiceRequest, q quoterepo.Quote) notification.Emission {
	return notification.Emission{
		Kind:          domain.KindQuoteRejected,
		RecipientID:   q.ProviderID,
		ReferenceKind: domain.RefQuote,
		ReferenceID:   q.ID,
		Payload:       quotePayload(req, q),
	}
}

func withdrawnEmission(req quoterepo.ServiceRequest, providerID uuid.UUID) notification.Emission {
	return notification.Emission{
		Kind:          domain.KindRequestNoLongerAvailable,
		RecipientID:   providerID,
		ReferenceKind: domain.RefRequest,
		ReferenceID:   req.ID,
		Payload:       requestPayload(req),
	}
}

// acceptEmissions tells the winner, every losing bidder and every invitee
// that never bid. Bidders are everyone with a quote on the request.
func acceptEmissions(res quoterepo.AcceptResult, quotes []quoterepo.Quote, job jobrepo.Job) []notification.Emission {
	out := make([]notification.Emission, 0, len(res.Rejected)+len(res.Invitees)+1)

	won := quotePayload(res.Request, res.Accepted)
	won[notification.PayloadJobID] = job.ID
	won[notification.PayloadActorID] = res.Request.ClientID
	out = append(out, notification.Emission{
		Kind:          domain.KindQuoteAccepted,
		RecipientID:   res.Accepted.ProviderID,
		ReferenceKind: domain.RefQuote,
		ReferenceID:   res.Accepted.ID,
		Payload:       won,
	})

	for _, q := range res.Rejected {
		out = append(out, rejectEmission(res.Request, q))
	}

	bidders := make(map[uuid.UUID]bool, len(quotes)+1)
	bidders[res.Accepted.ProviderID] = true
	for _, q := range quotes {
		bidders[q.ProviderID] = true
	}
	for _, providerID := range res.Invitees {
		if !bidders[providerID] {
			out = append(out, withdrawnEmission(res.Request, providerID))
		}
	}
	return out
}

func cancelRequestEmissions(res quoterepo.CancelResult) []notification.Emission {
	out := make([]notification.Emission, 0, len(res.Invitees))
	for _, providerID := range res.Invitees {
		out = append(out, withdrawnEmission(res.Request, providerID))
	}
	return out
}

func finalizeEmissions(req quoterepo.ServiceRequest, job jobrepo.Job, role domain.Role) []notification.Emission {
	if role == domain.RoleProvider {
		p := jobPayload(req, job)
		p[notification.PayloadActorID] = job.ProviderID
		return []notification.Emission{{
			Kind:          domain.KindJobFinalizedPendingConfirmation,
			RecipientID:   job.ClientID,
			ReferenceKind: domain.RefJob,
			ReferenceID:   job.ID,
			Payload:       p,
		}}
	}

	out := make([]notification.Emission, 0, 2)
	for _, recipient := range []uuid.UUID{job.ClientID, job.ProviderID} {
		out = append(out, notification.Emission{
			Kind:          domain.KindJobCompletedPleaseRate,
			RecipientID:   recipient,
			ReferenceKind: domain.RefJob,
			ReferenceID:   job.ID,
			Payload:       jobPayload(req, job),
		})
	}
	return out
}

func cancelJobEmission(req quoterepo.ServiceRequest, job jobrepo.Job, by domain.Role) notification.Emission {
	actorID := job.ClientID
	if by == domain.RoleProvider {
		actorID = job.ProviderID
	}
	p := jobPayload(req, job)
	p[notification.PayloadCancelledBy] = string(by)
	p[notification.PayloadActorID] = actorID
	if job.CancellationNote != nil {
		p[notification.PayloadReason] = *job.CancellationNote
	}
	return notification.Emission{
		Kind:          domain.KindJobCancelled,
		RecipientID:   job.Parties().Counterpart(by),
		ReferenceKind: domain.RefJob,
		ReferenceID:   job.ID,
		Payload:       p,
	}
}
