package transport

import (
	"time"

	jobrepo "marketplace_backend/internal/jobs/repository"
	quoterepo "marketplace_backend/internal/quotes/repository"
	quotesvc "marketplace_backend/internal/quotes/service"
	ratingrepo "marketplace_backend/internal/ratings/repository"

	"github.com/google/uuid"
)

// CreateRequestRequest opens a service request.
type CreateRequestRequest struct {
	ServiceID   uuid.UUID `json:"serviceId" validate:"required"`
	Description string    `json:"description" validate:"required,min=1,max=4000"`
	PhotoRefs   []string  `json:"photoRefs,omitempty" validate:"omitempty,max=10,dive,objectkey"`
}

// InviteProvidersRequest invites providers to quote.
type InviteProvidersRequest struct {
	ProviderIDs []uuid.UUID `json:"providerIds" validate:"required,min=1,max=50,dive,required"`
}

// SubmitQuoteRequest is a provider's bid.
type SubmitQuoteRequest struct {
	PriceCents       int64  `json:"priceCents" validate:"required,gt=0"`
	EstimatedMinutes int    `json:"estimatedMinutes" validate:"required,gt=0"`
	Notes            string `json:"notes,omitempty" validate:"max=2000"`
}

// FinalizeJobRequest records a party's completion.
type FinalizeJobRequest struct {
	EvidenceRefs []string `json:"evidenceRefs,omitempty" validate:"omitempty,max=20,dive,objectkey"`
}

// CancelJobRequest cancels a live job.
type CancelJobRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// RateJobRequest rates the other party of a completed job.
type RateJobRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// PhotoResponse is a request photo with its download link.
type PhotoResponse struct {
	Ref string `json:"ref"`
	URL string `json:"url,omitempty"`
}

// RequestResponse represents a service request in API responses.
type RequestResponse struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"clientId"`
	ServiceID   uuid.UUID       `json:"serviceId"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Photos      []PhotoResponse `json:"photos"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// QuoteResponse represents a quote in API responses.
type QuoteResponse struct {
	ID               uuid.UUID `json:"id"`
	RequestID        uuid.UUID `json:"requestId"`
	ProviderID       uuid.UUID `json:"providerId"`
	PriceCents       int64     `json:"priceCents"`
	EstimatedMinutes int       `json:"estimatedMinutes"`
	Notes            string    `json:"notes,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID                  uuid.UUID  `json:"id"`
	RequestID           uuid.UUID  `json:"requestId"`
	QuoteID             uuid.UUID  `json:"quoteId"`
	ClientID            uuid.UUID  `json:"clientId"`
	ProviderID          uuid.UUID  `json:"providerId"`
	PriceCents          int64      `json:"priceCents"`
	Status              string     `json:"status"`
	EvidenceRefs        []string   `json:"evidenceRefs"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	ProviderFinalizedAt *time.Time `json:"providerFinalizedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy         *string    `json:"cancelledBy,omitempty"`
	CancellationNote    *string    `json:"cancellationNote,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// AcceptQuoteResponse is returned after a quote is accepted.
type AcceptQuoteResponse struct {
	Request  RequestResponse `json:"request"`
	Accepted QuoteResponse   `json:"accepted"`
	Rejected []QuoteResponse `json:"rejected"`
	Job      JobResponse     `json:"job"`
}

// InviteProvidersResponse lists the providers newly invited.
type InviteProvidersResponse struct {
	Invited []uuid.UUID `json:"invited"`
}

// RatingResponse represents a rating in API responses.
type RatingResponse struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"jobId"`
	RaterID   uuid.UUID `json:"raterId"`
	RateeID   uuid.UUID `json:"rateeId"`
	Direction string    `json:"direction"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingStatsResponse is a user's rating aggregate.
type RatingStatsResponse struct {
	UserID  uuid.UUID `json:"userId"`
	Count   int       `json:"count"`
	Average float64   `json:"average"`
}

// RateJobResponse is returned after a rating is recorded.
type RateJobResponse struct {
	Rating RatingResponse      `json:"rating"`
	Ratee  RatingStatsResponse `json:"rateeStats"`
}

// ListResponse wraps a list of items.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewListResponse maps items into a list response.
func NewListResponse[S, T any](items []S, mapFn func(S) T) ListResponse[T] {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, mapFn(item))
	}
	return ListResponse[T]{Items: out, Total: len(out)}
}

// ToRequestResponse maps a request and its photo links.
func ToRequestResponse(req quoterepo.ServiceRequest, photos []quotesvc.PhotoLink) RequestResponse {
	resp := RequestResponse{
		ID:          req.ID,
		ClientID:    req.ClientID,
		ServiceID:   req.ServiceID,
		Description: req.Description,
		Status:      string(req.Status),
		Photos:      make([]PhotoResponse, 0, len(req.PhotoRefs)),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
	if photos == nil {
		for _, ref := range req.PhotoRefs {
			resp.Photos = append(resp.Photos, PhotoResponse{Ref: ref})
		}
		return resp
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, PhotoResponse{Ref: p.Ref, URL: p.URL})
	}
	return resp
}

// ToRequestSummary maps a request without resolving photo links.
func ToRequestSummary(req quoterepo.ServiceRequest) RequestResponse {
	return ToRequestResponse(req, nil)
}

func ToQuoteResponse(q quoterepo.Quote) QuoteResponse {
	return QuoteResponse{
		ID:               q.ID,
		RequestID:        q.RequestID,
		ProviderID:       q.ProviderID,
		PriceCents:       q.PriceCents,
		EstimatedMinutes: q.EstimatedMinutes,
		Notes:            q.Notes,
		Status:           string(q.Status),
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func ToJobResponse(j jobrepo.Job) JobResponse {
	resp := JobResponse{
		ID:                  j.ID,
		RequestID:           j.RequestID,
		QuoteID:             j.QuoteID,
		ClientID:            j.ClientID,
		ProviderID:          j.ProviderID,
		PriceCents:          j.PriceCents,
		Status:              string(j.Status),
		EvidenceRefs:        j.EvidenceRefs,
		StartedAt:           j.StartedAt,
		ProviderFinalizedAt: j.ProviderFinalizedAt,
		CompletedAt:         j.CompletedAt,
		CancelledAt:         j.CancelledAt,
		CancellationNote:    j.CancellationNote,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
	}
	if resp.EvidenceRefs == nil {
		resp.EvidenceRefs = []string{}
	}
	if j.CancelledBy != nil {
		by := string(*j.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

func ToRatingResponse(r ratingrepo.Rating) RatingResponse {
	return RatingResponse{
		ID:        r.ID,
		JobID:     r.JobID,
		RaterID:   r.RaterID,
		RateeID:   r.RateeID,
		Direction: string(r.Direction),
		Score:     r.Score,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func ToRatingStatsResponse(s ratingrepo.Stats) RatingStatsResponse {
	return RatingStatsResponse{UserID: s.UserID, Count: s.Count, Average: s.Average}
}
