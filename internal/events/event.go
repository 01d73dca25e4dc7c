// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"marketplace_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// PartyEvent is a lifecycle event that concerns a known set of users.
type PartyEvent interface {
	Event
	Parties() []uuid.UUID
}

// LifecycleEventNames lists every event published after a committed
// lifecycle transition.
var LifecycleEventNames = []string{
	RequestCreated{}.EventName(),
	ProvidersInvited{}.EventName(),
	QuoteSubmitted{}.EventName(),
	QuoteAccepted{}.EventName(),
	QuoteRejected{}.EventName(),
	RequestCancelled{}.EventName(),
	JobStarted{}.EventName(),
	JobFinalized{}.EventName(),
	JobCancelled{}.EventName(),
	JobRated{}.EventName(),
}

// =============================================================================
// Request Events
// =============================================================================

// RequestCreated is published when a client opens a service request.
type RequestCreated struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	ClientID  uuid.UUID `json:"clientId"`
	ServiceID uuid.UUID `json:"serviceId"`
}

func (e RequestCreated) EventName() string { return "request.created" }
func (e RequestCreated) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID} }

// ProvidersInvited is published when providers are newly invited to bid.
type ProvidersInvited struct {
	BaseEvent
	RequestID   uuid.UUID   `json:"requestId"`
	ClientID    uuid.UUID   `json:"clientId"`
	ProviderIDs []uuid.UUID `json:"providerIds"`
}

func (e ProvidersInvited) EventName() string { return "request.providers_invited" }
func (e ProvidersInvited) Parties() []uuid.UUID {
	return append([]uuid.UUID{e.ClientID}, e.ProviderIDs...)
}

// RequestCancelled is published when a client withdraws an open request.
type RequestCancelled struct {
	BaseEvent
	RequestID uuid.UUID   `json:"requestId"`
	ClientID  uuid.UUID   `json:"clientId"`
	Invitees  []uuid.UUID `json:"invitees"`
}

func (e RequestCancelled) EventName() string { return "request.cancelled" }
func (e RequestCancelled) Parties() []uuid.UUID {
	return append([]uuid.UUID{e.ClientID}, e.Invitees...)
}

// =============================================================================
// Quote Events
// =============================================================================

// QuoteSubmitted is published when a provider bids on a request.
type QuoteSubmitted struct {
	BaseEvent
	RequestID  uuid.UUID `json:"requestId"`
	QuoteID    uuid.UUID `json:"quoteId"`
	ClientID   uuid.UUID `json:"clientId"`
	ProviderID uuid.UUID `json:"providerId"`
	PriceCents int64     `json:"priceCents"`
}

func (e QuoteSubmitted) EventName() string { return "quote.submitted" }
func (e QuoteSubmitted) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID, e.ProviderID} }

// QuoteAccepted is published when a client accepts a quote and its job exists.
type QuoteAccepted struct {
	BaseEvent
	RequestID        uuid.UUID   `json:"requestId"`
	QuoteID          uuid.UUID   `json:"quoteId"`
	JobID            uuid.UUID   `json:"jobId"`
	ClientID         uuid.UUID   `json:"clientId"`
	ProviderID       uuid.UUID   `json:"providerId"`
	RejectedQuoteIDs []uuid.UUID `json:"rejectedQuoteIds"`
	Invitees         []uuid.UUID `json:"invitees"`
}

func (e QuoteAccepted) EventName() string { return "quote.accepted" }
func (e QuoteAccepted) Parties() []uuid.UUID {
	parties := []uuid.UUID{e.ClientID, e.ProviderID}
	for _, id := range e.Invitees {
		if id != e.ProviderID {
			parties = append(parties, id)
		}
	}
	return parties
}

// QuoteRejected is published when a client declines a single quote.
type QuoteRejected struct {
	BaseEvent
	RequestID  uuid.UUID `json:"requestId"`
	QuoteID    uuid.UUID `json:"quoteId"`
	ClientID   uuid.UUID `json:"clientId"`
	ProviderID uuid.UUID `json:"providerId"`
}

func (e QuoteRejected) EventName() string { return "quote.rejected" }
func (e QuoteRejected) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID, e.ProviderID} }

// =============================================================================
// Job Events
// =============================================================================

// JobStarted is published when the provider starts work.
type JobStarted struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	RequestID  uuid.UUID `json:"requestId"`
	ClientID   uuid.UUID `json:"clientId"`
	ProviderID uuid.UUID `json:"providerId"`
}

func (e JobStarted) EventName() string { return "job.started" }
func (e JobStarted) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID, e.ProviderID} }

// JobFinalized is published when either party finalizes a job. Completed is
// true once the client has confirmed.
type JobFinalized struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	RequestID  uuid.UUID `json:"requestId"`
	ClientID   uuid.UUID `json:"clientId"`
	ProviderID uuid.UUID `json:"providerId"`
	Role       string    `json:"role"`
	Completed  bool      `json:"completed"`
}

func (e JobFinalized) EventName() string { return "job.finalized" }
func (e JobFinalized) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID, e.ProviderID} }

// JobCancelled is published when either party cancels a job.
type JobCancelled struct {
	BaseEvent
	JobID       uuid.UUID `json:"jobId"`
	RequestID   uuid.UUID `json:"requestId"`
	ClientID    uuid.UUID `json:"clientId"`
	ProviderID  uuid.UUID `json:"providerId"`
	CancelledBy string    `json:"cancelledBy"`
	Reason      string    `json:"reason"`
}

func (e JobCancelled) EventName() string { return "job.cancelled" }
func (e JobCancelled) Parties() []uuid.UUID { return []uuid.UUID{e.ClientID, e.ProviderID} }

// JobRated is published when a party rates the other.
type JobRated struct {
	BaseEvent
	JobID   uuid.UUID `json:"jobId"`
	RaterID uuid.UUID `json:"raterId"`
	RateeID uuid.UUID `json:"rateeId"`
	Score   int       `json:"score"`
}

func (e JobRated) EventName() string { return "job.rated" }
func (e JobRated) Parties() []uuid.UUID { return []uuid.UUID{e.RaterID, e.RateeID} }
