// Package notificationtest provides a recording Delivery for tests.
package notificationtest

import (
	"context"
	"errors"
	"sync"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/notification/inapp"

	"github.com/google/uuid"
)

// ErrDeliveryDown is returned while the recorder is failing.
var ErrDeliveryDown = errors.New("delivery channel unavailable")

// Recorder is a Delivery that records what it was handed.
type Recorder struct {
	mu        sync.Mutex
	delivered []inapp.Notification
	failing   bool
}

// Deliver records n, or fails while SetFailing(true) is in effect.
func (r *Recorder) Deliver(_ context.Context, n inapp.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return ErrDeliveryDown
	}
	r.delivered = append(r.delivered, n)
	return nil
}

// SetFailing toggles delivery failure.
func (r *Recorder) SetFailing(failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = failing
}

// Delivered returns every recorded notification.
func (r *Recorder) Delivered() []inapp.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inapp.Notification{}, r.delivered...)
}

// For returns the kinds delivered to recipient, in delivery order.
func (r *Recorder) For(recipient uuid.UUID) []domain.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]domain.NotificationKind, 0)
	for _, n := range r.delivered {
		if n.RecipientID == recipient {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// Count returns how many notifications of kind were delivered to recipient.
func (r *Recorder) Count(recipient uuid.UUID, kind domain.NotificationKind) int {
	n := 0
	for _, k := range r.For(recipient) {
		if k == kind {
			n++
		}
	}
	return n
}

// Reset forgets every recorded delivery.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = nil
}
