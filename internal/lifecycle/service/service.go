// Package service implements the lifecycle orchestrator. Every mutating entry
// point takes the per-request lock, runs one ledger or tracker operation,
// releases the lock and only then fans out notifications.
package service

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/events"
	jobsvc "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/notification"
	quotesvc "marketplace_backend/internal/quotes/service"
	ratingsvc "marketplace_backend/internal/ratings/service"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/lock"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	opCreateRequest   = "create_request"
	opInviteProviders = "invite_providers"
	opSubmitQuote     = "submit_quote"
	opAcceptQuote     = "accept_quote"
	opRejectQuote     = "reject_quote"
	opCancelRequest   = "cancel_request"
	opStartJob        = "start_job"
	opFinalizeJob     = "finalize_job"
	opCancelJob       = "cancel_job"
	opRateJob         = "rate_job"
)

// Notifier fans out a transition's notifications.
type Notifier interface {
	EmitAll(ctx context.Context, emissions []notification.Emission) notification.Report
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (a Actor) isAdmin() bool { return a.Role == domain.RoleAdmin }

// Service is the lifecycle orchestrator.
type Service struct {
	locker   lock.Locker
	quotes   *quotesvc.Service
	jobs     *jobsvc.Service
	ratings  *ratingsvc.Service
	notifier Notifier
	bus      events.Bus
	log      *logger.Logger
}

// New creates a lifecycle orchestrator.
func New(locker lock.Locker, quotes *quotesvc.Service, jobs *jobsvc.Service, ratings *ratingsvc.Service, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		locker:   locker,
		quotes:   quotes,
		jobs:     jobs,
		ratings:  ratings,
		notifier: notifier,
		log:      log,
	}
}

// SetEventBus publishes a lifecycle event after each committed transition.
func (s *Service) SetEventBus(bus events.Bus) {
	s.bus = bus
}

// transition is what a committed operation leaves behind for the
// post-lock phase.
type transition struct {
	emissions []notification.Emission
	event     events.Event
	attrs     []any
}

func requestLockKey(requestID uuid.UUID) string {
	return "request:" + requestID.String()
}

// run executes fn under the request lock, then emits and publishes outside it.
func (s *Service) run(ctx context.Context, op string, requestID uuid.UUID, fn func(ctx context.Context) (transition, error)) error {
	unlock, err := s.locker.Lock(ctx, requestLockKey(requestID))
	if err != nil {
		metrics.RecordTransition(op, outcomeOf(err), 0)
		s.log.WithContext(ctx).Error("request lock unavailable", "operation", op, "requestId", requestID, "error", err)
		return err
	}

	start := time.Now()
	t, err := fn(ctx)
	held := time.Since(start)
	unlock()

	metrics.RecordTransition(op, outcomeOf(err), held)
	if err != nil {
		return err
	}
	s.complete(ctx, op, t)
	return nil
}

func (s *Service) complete(ctx context.Context, op string, t transition) {
	s.log.WithContext(ctx).Transition(op, t.attrs...)

	// The transition is committed; emission and subscribers must outlive the caller.
	detached := context.WithoutCancel(ctx)
	if len(t.emissions) > 0 && s.notifier != nil {
		s.notifier.EmitAll(detached, t.emissions)
	}
	if t.event != nil && s.bus != nil {
		s.bus.Publish(detached, t.event)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if apperr.IsRetriable(err) {
		return "unavailable"
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "error"
}

func requireRole(actor Actor, role domain.Role) error {
	if actor.UserID == uuid.Nil {
		return apperr.Unauthorized("authentication required")
	}
	if actor.Role != role {
		return domain.ErrNotParticipant
	}
	return nil
}
