package domain

import "marketplace_backend/platform/apperr"

// Stable error codes returned to API callers.
const (
	CodeRequestNotFound  = "request_not_found"
	CodeRequestNotOpen   = "request_not_open"
	CodeDuplicateQuote   = "duplicate_quote"
	CodeQuoteNotFound    = "quote_not_found"
	CodeQuoteNotOpen     = "quote_not_open"
	CodeJobNotFound      = "job_not_found"
	CodeJobAlreadyExists = "job_already_exists"
	CodeJobTerminal      = "job_terminal"
	CodeReasonRequired   = "reason_required"
	CodeJobNotCompleted  = "job_not_completed"
	CodeAlreadyRated     = "already_rated"
	CodeNotParticipant   = "not_participant"
)

// Sentinel domain errors. Compare with errors.Is; copies made with WithOp
// still match because comparison is by code.
var (
	ErrRequestNotFound  = apperr.NotFound("service request not found").WithCode(CodeRequestNotFound)
	ErrRequestNotOpen   = apperr.Conflict("service request is no longer open for quotes").WithCode(CodeRequestNotOpen)
	ErrDuplicateQuote   = apperr.Conflict("you already have an open quote on this request").WithCode(CodeDuplicateQuote)
	ErrQuoteNotFound    = apperr.NotFound("quote not found").WithCode(CodeQuoteNotFound)
	ErrQuoteNotOpen     = apperr.Conflict("quote has already been accepted or rejected").WithCode(CodeQuoteNotOpen)
	ErrJobNotFound      = apperr.NotFound("job not found").WithCode(CodeJobNotFound)
	ErrJobAlreadyExists = apperr.Conflict("a job already exists for this quote").WithCode(CodeJobAlreadyExists)
	ErrJobTerminal      = apperr.Conflict("job is already completed or cancelled").WithCode(CodeJobTerminal)
	ErrReasonRequired   = apperr.Validation("a cancellation reason is required").WithCode(CodeReasonRequired)
	ErrJobNotCompleted  = apperr.Conflict("job must be completed before it can be rated").WithCode(CodeJobNotCompleted)
	ErrAlreadyRated     = apperr.Conflict("you have already rated this job").WithCode(CodeAlreadyRated)
	ErrNotParticipant   = apperr.Forbidden("you are not a participant in this request").WithCode(CodeNotParticipant)
)
