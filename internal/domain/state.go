// Package domain holds the statuses, roles and rules shared by the quote
// ledger, job tracker, rating gate and lifecycle orchestrator.
package domain

import "github.com/google/uuid"

// Role is the part a caller plays in a request or job.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// RequestStatus is the state of a ServiceRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestQuoting   RequestStatus = "quoting"
	RequestAccepted  RequestStatus = "accepted"
	RequestCancelled RequestStatus = "cancelled"
)

// AcceptsQuotes reports whether providers may still bid.
func (s RequestStatus) AcceptsQuotes() bool {
	return s == RequestPending || s == RequestQuoting
}

// QuoteStatus is the state of a Quote.
type QuoteStatus string

const (
	QuoteOpen     QuoteStatus = "open"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// IsTerminal reports whether the quote can no longer change.
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteAccepted || s == QuoteRejected
}

// JobStatus is the state of a Job.
type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// Direction is which party rates which.
type Direction string

const (
	DirectionClientToProvider Direction = "client_to_provider"
	DirectionProviderToClient Direction = "provider_to_client"
)

// Parties identifies the two sides of a job.
type Parties struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
}

// RoleOf returns the role userID plays, or false if it is neither party.
func (p Parties) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case p.ClientID:
		return RoleClient, true
	case p.ProviderID:
		return RoleProvider, true
	}
	return "", false
}

// Counterpart returns the other party's id.
func (p Parties) Counterpart(role Role) uuid.UUID {
	if role == RoleClient {
		return p.ProviderID
	}
	return p.ClientID
}

// RatingDirection infers the direction and ratee from the rater's position.
func (p Parties) RatingDirection(raterID uuid.UUID) (Direction, uuid.UUID, error) {
	role, ok := p.RoleOf(raterID)
	if !ok {
		return "", uuid.Nil, ErrNotParticipant
	}
	if role == RoleClient {
		return DirectionClientToProvider, p.ProviderID, nil
	}
	return DirectionProviderToClient, p.ClientID, nil
}
