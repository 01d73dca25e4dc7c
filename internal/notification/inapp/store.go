package inapp

import (
	"context"
	"time"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
)

// ErrNotificationNotFound is returned when a notification does not exist.
var ErrNotificationNotFound = apperr.NotFound("notification not found").WithCode("notification_not_found")

// Notification is a stored message to one recipient about one entity.
type Notification struct {
	ID            uuid.UUID               `json:"id"`
	RecipientID   uuid.UUID               `json:"recipientId"`
	Kind          domain.NotificationKind `json:"kind"`
	ReferenceKind domain.ReferenceKind    `json:"referenceKind"`
	ReferenceID   uuid.UUID               `json:"referenceId"`
	Title         string                  `json:"title"`
	Body          string                  `json:"body"`
	Payload       map[string]any          `json:"payload,omitempty"`
	ReadAt        *time.Time              `json:"readAt,omitempty"`
	DeliveredAt   *time.Time              `json:"deliveredAt,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// IsRead reports whether the recipient has read the notification.
func (n Notification) IsRead() bool { return n.ReadAt != nil }

// Store persists notifications. The (kind, recipient, reference kind,
// reference id) tuple is unique.
type Store interface {
	// Insert stores n unless a notification with the same idempotency tuple
	// exists, in which case the existing row is returned with created=false.
	Insert(ctx context.Context, n Notification) (stored Notification, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}
