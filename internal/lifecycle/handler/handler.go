package handler

import (
	"net/http"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/lifecycle/service"
	"marketplace_backend/internal/lifecycle/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the request, quote and job lifecycle.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// New creates a new lifecycle handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func actorFrom(c *gin.Context) (service.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: identity.UserID(), Role: domain.Role(identity.PrimaryRole())}, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates a JSON body.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

// CreateRequest opens a service request.
// POST /api/v1/requests
func (h *Handler) CreateRequest(c *gin.Context) {
	var req transport.CreateRequestRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.svc.CreateRequest(c.Request.Context(), actor, service.CreateRequestInput{
		ServiceID:   req.ServiceID,
		Description: req.Description,
		PhotoRefs:   req.PhotoRefs,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToRequestSummary(result))
}

// ListRequests lists the caller's requests.
// GET /api/v1/requests
func (h *Handler) ListRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	result, err := h.svc.ListRequests(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewListResponse(result, transport.ToRequestSummary))
}

// GetRequest retrieves a request with photo links.
// GET /api/v1/requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	view, err := h.svc.GetRequest(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRequestResponse(view.Request, view.Photos))
}

// InviteProviders invites providers to quote.
// POST /api/v1/requests/:id/invitations
func (h *Handler) InviteProviders(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.InviteProvidersRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	invited, err := h.svc.InviteProviders(c.Request.Context(), actor, id, req.ProviderIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.InviteProvidersResponse{Invited: invited})
}

// CancelRequest withdraws an open request.
// POST /api/v1/requests/:id/cancel
func (h *Handler) CancelRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	result, err := h.svc.CancelRequest(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRequestSummary(result))
}

// SubmitQuote records the caller's bid.
// POST /api/v1/requests/:id/quotes
func (h *Handler) SubmitQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.SubmitQuoteRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	quote, err := h.svc.SubmitQuote(c.Request.Context(), actor, id, service.SubmitQuoteInput{
		PriceCents:       req.PriceCents,
		EstimatedMinutes: req.EstimatedMinutes,
		Notes:            req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToQuoteResponse(quote))
}

// ListQuotes lists the quotes on a request visible to the caller.
// GET /api/v1/requests/:id/quotes
func (h *Handler) ListQuotes(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	quotes, err := h.svc.ListQuotes(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewListResponse(quotes, transport.ToQuoteResponse))
}

// AcceptQuote accepts a quote and creates its job.
// POST /api/v1/requests/:id/quotes/:quoteId/accept
func (h *Handler) AcceptQuote(c *gin.Context) {
	requestID, ok := parseID(c, "id")
	if !ok {
		return
	}
	quoteID, ok := parseID(c, "quoteId")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	out, err := h.svc.AcceptQuote(c.Request.Context(), actor, requestID, quoteID)
	if httpkit.HandleError(c, err) {
		return
	}
	rejected := make([]transport.QuoteResponse, 0, len(out.Rejected))
	for _, q := range out.Rejected {
		rejected = append(rejected, transport.ToQuoteResponse(q))
	}
	httpkit.OK(c, transport.AcceptQuoteResponse{
		Request:  transport.ToRequestSummary(out.Request),
		Accepted: transport.ToQuoteResponse(out.Accepted),
		Rejected: rejected,
		Job:      transport.ToJobResponse(out.Job),
	})
}

// RejectQuote declines a single quote.
// POST /api/v1/quotes/:id/reject
func (h *Handler) RejectQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	quote, err := h.svc.RejectQuote(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQuoteResponse(quote))
}

// ListJobs lists the caller's jobs.
// GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	jobs, err := h.svc.ListJobs(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewListResponse(jobs, transport.ToJobResponse))
}

// GetJob retrieves a job.
// GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	job, err := h.svc.GetJob(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

// StartJob marks a job as in progress.
// POST /api/v1/jobs/:id/start
func (h *Handler) StartJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	job, err := h.svc.StartJob(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

// FinalizeJob records the caller's completion.
// POST /api/v1/jobs/:id/finalize
func (h *Handler) FinalizeJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.FinalizeJobRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	job, err := h.svc.FinalizeJob(c.Request.Context(), actor, id, req.EvidenceRefs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

// CancelJob cancels a live job.
// POST /api/v1/jobs/:id/cancel
func (h *Handler) CancelJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.CancelJobRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	job, err := h.svc.CancelJob(c.Request.Context(), actor, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

// RateJob rates the other party of a completed job.
// POST /api/v1/jobs/:id/ratings
func (h *Handler) RateJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.RateJobRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	rating, stats, err := h.svc.Rate(c.Request.Context(), actor, id, service.RateInput{Score: req.Score, Comment: req.Comment})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.RateJobResponse{
		Rating: transport.ToRatingResponse(rating),
		Ratee:  transport.ToRatingStatsResponse(stats),
	})
}

// ListJobRatings lists the ratings left on a job.
// GET /api/v1/jobs/:id/ratings
func (h *Handler) ListJobRatings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ratings, err := h.svc.ListJobRatings(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewListResponse(ratings, transport.ToRatingResponse))
}

// GetUserRating returns a user's rating aggregate.
// GET /api/v1/users/:id/rating
func (h *Handler) GetUserRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := actorFrom(c); !ok {
		return
	}
	stats, err := h.svc.GetUserRating(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRatingStatsResponse(stats))
}
