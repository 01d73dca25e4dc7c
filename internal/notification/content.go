package notification

import (
	"context"
	"fmt"
	"strings"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/email"

	"github.com/google/uuid"
)

// Payload keys understood by the renderer.
const (
	PayloadRequestID   = "requestId"
	PayloadQuoteID     = "quoteId"
	PayloadJobID       = "jobId"
	PayloadServiceID   = "serviceId"
	PayloadActorID     = "actorId"
	PayloadPriceCents  = "priceCents"
	PayloadReason      = "reason"
	PayloadCancelledBy = "cancelledBy"

	payloadServiceName = "serviceName"
	payloadActorName   = "actorName"
	payloadLink        = "link"
)

// Catalog resolves names used in notification text.
type Catalog interface {
	ServiceName(ctx context.Context, serviceID uuid.UUID) string
	DisplayName(ctx context.Context, userID uuid.UUID) string
}

// Content is the rendered form of an emission.
type Content struct {
	Title   string
	Body    string
	Payload map[string]any
}

// Renderer turns emissions into user-facing text.
type Renderer struct {
	catalog Catalog
	baseURL string
}

// NewRenderer creates a renderer. A nil catalog renders generic labels.
func NewRenderer(catalog Catalog, appBaseURL string) *Renderer {
	return &Renderer{catalog: catalog, baseURL: strings.TrimRight(appBaseURL, "/")}
}

// Render builds the title, body and enriched payload for e.
func (r *Renderer) Render(ctx context.Context, e Emission) Content {
	payload := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		payload[k] = v
	}

	service := r.serviceName(ctx, payload)
	actor := r.actorName(ctx, payload)
	payload[payloadServiceName] = service
	if actor != "" {
		payload[payloadActorName] = actor
	}
	if link := r.link(e); link != "" {
		payload[payloadLink] = link
	}

	price := ""
	if cents, ok := int64Value(payload[PayloadPriceCents]); ok {
		price = email.FormatCurrency(cents)
	}

	var title, body string
	switch e.Kind {
	case domain.KindNewQuoteRequest:
		title = "New quote request"
		body = fmt.Sprintf("You have been invited to quote on %s.", service)
	case domain.KindNewQuoteReceived:
		title = "New quote received"
		body = fmt.Sprintf("%s sent a quote of %s for %s.", orDefault(actor, "A provider"), orDefault(price, "an amount"), service)
	case domain.KindQuoteAccepted:
		title = "Your quote was accepted"
		body = fmt.Sprintf("Your quote of %s for %s was accepted and the job is scheduled.", orDefault(price, "your price"), service)
	case domain.KindQuoteRejected:
		title = "Quote not selected"
		body = fmt.Sprintf("Your quote for %s was not selected.", service)
	case domain.KindRequestNoLongerAvailable:
		title = "Request no longer available"
		body = fmt.Sprintf("The request for %s is no longer accepting quotes.", service)
	case domain.KindJobFinalizedPendingConfirmation:
		title = "Please confirm completion"
		body = fmt.Sprintf("%s marked the job for %s as finished. Please confirm it is complete.", orDefault(actor, "Your provider"), service)
	case domain.KindJobCompletedPleaseRate:
		title = "Job completed"
		body = fmt.Sprintf("The job for %s is complete. Please rate your experience.", service)
	case domain.KindJobCancelled:
		title = "Job cancelled"
		reason, _ := payload[PayloadReason].(string)
		body = fmt.Sprintf("%s cancelled the job for %s.", orDefault(actor, "The other party"), service)
		if reason != "" {
			body += " Reason: " + reason
		}
	default:
		title = "Update"
		body = fmt.Sprintf("There is an update on %s.", service)
	}

	return Content{Title: title, Body: body, Payload: payload}
}

func (r *Renderer) serviceName(ctx context.Context, payload map[string]any) string {
	id, ok := uuidValue(payload[PayloadServiceID])
	if !ok || r.catalog == nil {
		return "your service request"
	}
	return r.catalog.ServiceName(ctx, id)
}

func (r *Renderer) actorName(ctx context.Context, payload map[string]any) string {
	id, ok := uuidValue(payload[PayloadActorID])
	if !ok || r.catalog == nil {
		return ""
	}
	return r.catalog.DisplayName(ctx, id)
}

func (r *Renderer) link(e Emission) string {
	if r.baseURL == "" {
		return ""
	}
	switch e.ReferenceKind {
	case domain.RefRequest:
		return fmt.Sprintf("%s/requests/%s", r.baseURL, e.ReferenceID)
	case domain.RefQuote:
		if requestID, ok := uuidValue(e.Payload[PayloadRequestID]); ok {
			return fmt.Sprintf("%s/requests/%s", r.baseURL, requestID)
		}
	case domain.RefJob:
		return fmt.Sprintf("%s/jobs/%s", r.baseURL, e.ReferenceID)
	}
	return ""
}

func uuidValue(v any) (uuid.UUID, bool) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, id != uuid.Nil
	case string:
		parsed, err := uuid.Parse(id)
		return parsed, err == nil && parsed != uuid.Nil
	}
	return uuid.Nil, false
}

func int64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
