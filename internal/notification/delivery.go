package notification

import (
	"context"
	"errors"
	"fmt"

	"marketplace_backend/internal/email"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/sse"

	"github.com/google/uuid"
)

// Delivery hands a stored notification to its recipient.
type Delivery interface {
	Deliver(ctx context.Context, n inapp.Notification) error
}

// DeliveryFunc adapts a function to Delivery.
type DeliveryFunc func(ctx context.Context, n inapp.Notification) error

func (f DeliveryFunc) Deliver(ctx context.Context, n inapp.Notification) error { return f(ctx, n) }

// Multi delivers through every channel and joins their errors.
type Multi []Delivery

func (m Multi) Deliver(ctx context.Context, n inapp.Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SSEDelivery pushes the notification to the recipient's open connections.
// Offline recipients still see it in their inbox.
type SSEDelivery struct {
	sse *sse.Service
}

func NewSSEDelivery(s *sse.Service) *SSEDelivery {
	return &SSEDelivery{sse: s}
}

func (d *SSEDelivery) Deliver(_ context.Context, n inapp.Notification) error {
	d.sse.Publish(n.RecipientID, sse.Event{Type: sse.EventNotification, Message: n.Title, Data: n})
	return nil
}

// EmailResolver looks up a recipient's email address.
type EmailResolver interface {
	EmailAddress(ctx context.Context, userID uuid.UUID) (string, bool)
}

// EmailDelivery sends the notification by email when the recipient has an
// address on file.
type EmailDelivery struct {
	sender   email.Sender
	resolver EmailResolver
}

func NewEmailDelivery(sender email.Sender, resolver EmailResolver) *EmailDelivery {
	return &EmailDelivery{sender: sender, resolver: resolver}
}

func (d *EmailDelivery) Deliver(ctx context.Context, n inapp.Notification) error {
	to, ok := d.resolver.EmailAddress(ctx, n.RecipientID)
	if !ok || to == "" {
		return nil
	}

	link, _ := n.Payload[payloadLink].(string)
	msg := email.Message{
		To:      to,
		Subject: n.Title,
		Heading: n.Title,
		Body:    n.Body,
		CTAURL:  link,
	}
	if link != "" {
		msg.CTALabel = "View details"
	}
	if err := d.sender.SendNotificationEmail(ctx, msg); err != nil {
		return fmt.Errorf("email delivery: %w", err)
	}
	return nil
}
