// Package lifecycle provides the marketplace lifecycle module: service
// requests, quotes, jobs and ratings behind one orchestrator.
package lifecycle

import (
	apphttp "marketplace_backend/internal/http"
	jobrepo "marketplace_backend/internal/jobs/repository"
	jobsvc "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/lifecycle/handler"
	"marketplace_backend/internal/lifecycle/service"
	quoterepo "marketplace_backend/internal/quotes/repository"
	quotesvc "marketplace_backend/internal/quotes/service"
	ratingrepo "marketplace_backend/internal/ratings/repository"
	ratingsvc "marketplace_backend/internal/ratings/service"
	"marketplace_backend/platform/lock"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores groups the repositories the lifecycle runs on.
type Stores struct {
	Quotes  quoterepo.Repository
	Jobs    jobrepo.Repository
	Ratings ratingrepo.Repository
}

// PostgresStores returns the PostgreSQL-backed repositories.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Quotes:  quoterepo.New(pool),
		Jobs:    jobrepo.New(pool),
		Ratings: ratingrepo.New(pool),
	}
}

// MemoryStores returns in-process repositories.
func MemoryStores() Stores {
	return Stores{
		Quotes:  quoterepo.NewMemory(),
		Jobs:    jobrepo.NewMemory(),
		Ratings: ratingrepo.NewMemory(),
	}
}

// Module is the lifecycle bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	quotes  *quotesvc.Service
}

// NewModule creates and initializes the lifecycle module with all its dependencies.
func NewModule(stores Stores, locker lock.Locker, notifier service.Notifier, val *validator.Validator, log *logger.Logger) *Module {
	quotes := quotesvc.New(stores.Quotes, log)
	jobs := jobsvc.New(stores.Jobs, log)
	ratings := ratingsvc.New(stores.Ratings, log)
	svc := service.New(locker, quotes, jobs, ratings, notifier, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		quotes:  quotes,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "lifecycle"
}

// Service returns the orchestrator for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetPhotoLinker enables presigned photo URLs on request reads.
func (m *Module) SetPhotoLinker(p quotesvc.PhotoLinker) {
	m.quotes.SetPhotoLinker(p)
}

// RegisterRoutes mounts lifecycle routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/requests", m.handler.ListRequests)
	ctx.Protected.GET("/requests/:id", m.handler.GetRequest)
	ctx.Protected.GET("/requests/:id/quotes", m.handler.ListQuotes)
	ctx.Protected.GET("/jobs", m.handler.ListJobs)
	ctx.Protected.GET("/jobs/:id", m.handler.GetJob)
	ctx.Protected.GET("/jobs/:id/ratings", m.handler.ListJobRatings)
	ctx.Protected.GET("/users/:id/rating", m.handler.GetUserRating)

	// Mutations are rate limited per IP; role and ownership checks live in the service.
	writes := ctx.Protected.Group("")
	if ctx.WriteRateLimiter != nil {
		writes.Use(ctx.WriteRateLimiter.RateLimit())
	}
	writes.POST("/requests", m.handler.CreateRequest)
	writes.POST("/requests/:id/invitations", m.handler.InviteProviders)
	writes.POST("/requests/:id/quotes", m.handler.SubmitQuote)
	writes.POST("/requests/:id/quotes/:quoteId/accept", m.handler.AcceptQuote)
	writes.POST("/requests/:id/cancel", m.handler.CancelRequest)
	writes.POST("/quotes/:id/reject", m.handler.RejectQuote)
	writes.POST("/jobs/:id/start", m.handler.StartJob)
	writes.POST("/jobs/:id/finalize", m.handler.FinalizeJob)
	writes.POST("/jobs/:id/cancel", m.handler.CancelJob)
	writes.POST("/jobs/:id/ratings", m.handler.RateJob)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
