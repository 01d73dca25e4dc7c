// Package notification stores lifecycle notifications exactly once per
// idempotency key, hands them to the delivery channels and queues failed
// deliveries for retry.
package notification

import (
	"context"
	"errors"
	"fmt"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultParallelism = 8

	errUndeliveredDuplicate = "undelivered on re-emit"
)

// Emission is one notification a transition wants sent.
type Emission struct {
	Kind          domain.NotificationKind
	RecipientID   uuid.UUID
	ReferenceKind domain.ReferenceKind
	ReferenceID   uuid.UUID
	Payload       map[string]any
}

// Key returns the idempotency key of the emission.
func (e Emission) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", e.Kind, e.RecipientID, e.ReferenceKind, e.ReferenceID)
}

// Outcome describes what happened to one emission.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeCoalesced Outcome = "coalesced"
	OutcomeQueued    Outcome = "queued"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome of one emission.
type Result struct {
	Emission       Emission
	NotificationID uuid.UUID
	Outcome        Outcome
	Err            error
}

// Report summarizes a fan-out.
type Report struct {
	Results []Result
}

// Count returns how many emissions ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the errors of emissions that could not be stored or queued.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed && res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher is the notification dispatcher.
type Dispatcher struct {
	store       inapp.Store
	outbox      outbox.Store
	delivery    Delivery
	renderer    *Renderer
	log         *logger.Logger
	parallelism int
}

// NewDispatcher creates a dispatcher. A nil renderer renders generic labels.
func NewDispatcher(store inapp.Store, queue outbox.Store, delivery Delivery, renderer *Renderer, log *logger.Logger) *Dispatcher {
	if renderer == nil {
		renderer = NewRenderer(nil, "")
	}
	return &Dispatcher{
		store:       store,
		outbox:      queue,
		delivery:    delivery,
		renderer:    renderer,
		log:         log,
		parallelism: defaultParallelism,
	}
}

// SetParallelism bounds how many emissions of one fan-out run at once.
func (d *Dispatcher) SetParallelism(n int) {
	if n > 0 {
		d.parallelism = n
	}
}

// Emit stores e and delivers it once. A duplicate of an already stored
// emission is coalesced and not delivered again. Delivery failures are
// queued for retry and reported as OutcomeQueued, never as an error.
func (d *Dispatcher) Emit(ctx context.Context, e Emission) Result {
	res := Result{Emission: e}
	if e.RecipientID == uuid.Nil || e.ReferenceID == uuid.Nil || e.Kind == "" {
		res.Outcome = OutcomeFailed
		res.Err = apperr.Validation("emission requires kind, recipient and reference")
		return d.finish(res)
	}

	content := d.renderer.Render(ctx, e)
	stored, created, err := d.store.Insert(ctx, inapp.Notification{
		ID:            uuid.New(),
		RecipientID:   e.RecipientID,
		Kind:          e.Kind,
		ReferenceKind: e.ReferenceKind,
		ReferenceID:   e.ReferenceID,
		Title:         content.Title,
		Body:          content.Body,
		Payload:       content.Payload,
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		d.log.Error("store notification failed", "kind", e.Kind, "recipientId", e.RecipientID, "error", err)
		return d.finish(res)
	}
	res.NotificationID = stored.ID

	if !created {
		// An undelivered duplicate may have lost its outbox row to a crash or
		// a failed enqueue. Enqueue is idempotent per notification.
		if stored.DeliveredAt == nil {
			if _, qerr := d.outbox.Enqueue(ctx, stored.ID, errUndeliveredDuplicate); qerr != nil {
				d.log.Error("queue notification retry failed", "notificationId", stored.ID, "error", qerr)
				res.Outcome = OutcomeFailed
				res.Err = qerr
				return d.finish(res)
			}
		}
		res.Outcome = OutcomeCoalesced
		return d.finish(res)
	}

	if err := d.delivery.Deliver(ctx, stored); err != nil {
		d.log.DeliveryFailed(stored.ID.String(), string(e.Kind), err)
		if _, qerr := d.outbox.Enqueue(ctx, stored.ID, err.Error()); qerr != nil {
			d.log.Error("queue notification retry failed", "notificationId", stored.ID, "error", qerr)
			res.Outcome = OutcomeFailed
			res.Err = qerr
			return d.finish(res)
		}
		res.Outcome = OutcomeQueued
		return d.finish(res)
	}

	if err := d.store.MarkDelivered(ctx, stored.ID); err != nil {
		d.log.Warn("mark notification delivered failed", "notificationId", stored.ID, "error", err)
	}
	res.Outcome = OutcomeDelivered
	return d.finish(res)
}

// EmitAll fans out a transition's emissions concurrently. Emissions sharing
// an idempotency key are coalesced before anything is stored.
func (d *Dispatcher) EmitAll(ctx context.Context, emissions []Emission) Report {
	unique := make([]Emission, 0, len(emissions))
	seen := make(map[string]bool, len(emissions))
	for _, e := range emissions {
		if key := e.Key(); !seen[key] {
			seen[key] = true
			unique = append(unique, e)
		}
	}

	results := make([]Result, len(unique))
	var g errgroup.Group
	g.SetLimit(d.parallelism)
	for i, e := range unique {
		i, e := i, e
		g.Go(func() error {
			results[i] = d.Emit(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Results: results}
	if failed := report.Count(OutcomeFailed); failed > 0 {
		d.log.Warn("notification fan-out partially failed", "failed", failed, "total", len(results), "error", report.Err())
	}
	return report
}

// Redeliver retries delivery of a stored notification. Already delivered
// notifications are a no-op.
func (d *Dispatcher) Redeliver(ctx context.Context, notificationID uuid.UUID) error {
	n, err := d.store.GetByID(ctx, notificationID)
	if err != nil {
		metrics.RecordRedelivery("failed")
		return err
	}
	if n.DeliveredAt != nil {
		metrics.RecordRedelivery("skipped")
		return nil
	}

	if err := d.delivery.Deliver(ctx, n); err != nil {
		metrics.RecordRedelivery("failed")
		return err
	}
	if err := d.store.MarkDelivered(ctx, n.ID); err != nil {
		d.log.Warn("mark notification delivered failed", "notificationId", n.ID, "error", err)
	}
	metrics.RecordRedelivery("delivered")
	return nil
}

func (d *Dispatcher) finish(res Result) Result {
	metrics.RecordNotification(string(res.Emission.Kind), string(res.Outcome))
	return res
}
