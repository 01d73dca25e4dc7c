package notification

import (
	"context"
	"strings"
	"testing"

	"marketplace_backend/internal/domain"

	"github.com/google/uuid"
)

type stubCatalog struct {
	services map[uuid.UUID]string
	names    map[uuid.UUID]string
}

func (c stubCatalog) ServiceName(_ context.Context, id uuid.UUID) string { return c.services[id] }
func (c stubCatalog) DisplayName(_ context.Context, id uuid.UUID) string { return c.names[id] }

func TestRenderUsesCatalogNames(t *testing.T) {
	serviceID, providerID, requestID := uuid.New(), uuid.New(), uuid.New()
	r := NewRenderer(stubCatalog{
		services: map[uuid.UUID]string{serviceID: "Plumbing"},
		names:    map[uuid.UUID]string{providerID: "Sam's Pipes"},
	}, "https://app.example/")

	c := r.Render(context.Background(), Emission{
		Kind:          domain.KindNewQuoteReceived,
		RecipientID:   uuid.New(),
		ReferenceKind: domain.RefQuote,
		ReferenceID:   uuid.New(),
		Payload: map[string]any{
			PayloadRequestID:  requestID,
			PayloadServiceID:  serviceID,
			PayloadActorID:    providerID,
			PayloadPriceCents: int64(12550),
		},
	})

	if c.Title != "New quote received" {
		t.Fatalf("unexpected title %q", c.Title)
	}
	if c.Body != "Sam's Pipes sent a quote of $125.50 for Plumbing." {
		t.Fatalf("unexpected body %q", c.Body)
	}
	if c.Payload[payloadLink] != "https://app.example/requests/"+requestID.String() {
		t.Fatalf("unexpected link %v", c.Payload[payloadLink])
	}
}

func TestRenderWithoutCatalogFallsBack(t *testing.T) {
	r := NewRenderer(nil, "")
	c := r.Render(context.Background(), Emission{
		Kind:          domain.KindJobCancelled,
		RecipientID:   uuid.New(),
		ReferenceKind: domain.RefJob,
		ReferenceID:   uuid.New(),
		Payload:       map[string]any{PayloadReason: "Tenant moved out"},
	})

	if !strings.HasPrefix(c.Body, "The other party cancelled the job for your service request.") {
		t.Fatalf("unexpected body %q", c.Body)
	}
	if !strings.HasSuffix(c.Body, "Reason: Tenant moved out") {
		t.Fatalf("expected attributed reason in body, got %q", c.Body)
	}
	if _, ok := c.Payload[payloadLink]; ok {
		t.Fatalf("no link without a base url")
	}
}

func TestRenderLeavesEmissionPayloadUntouched(t *testing.T) {
	payload := map[string]any{PayloadJobID: uuid.New()}
	e := Emission{Kind: domain.KindJobCompletedPleaseRate, RecipientID: uuid.New(), ReferenceKind: domain.RefJob, ReferenceID: uuid.New(), Payload: payload}

	c := NewRenderer(nil, "https://app.example").Render(context.Background(), e)
	if len(payload) != 1 {
		t.Fatalf("renderer must copy the payload")
	}
	if c.Payload[payloadLink] != "https://app.example/jobs/"+e.ReferenceID.String() {
		t.Fatalf("unexpected job link %v", c.Payload[payloadLink])
	}
}
