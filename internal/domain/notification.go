package domain

// NotificationKind enumerates the messages the lifecycle fans out.
type NotificationKind string

const (
	KindNewQuoteRequest                 NotificationKind = "new_quote_request"
	KindNewQuoteReceived                NotificationKind = "new_quote_received"
	KindQuoteAccepted                   NotificationKind = "quote_accepted"
	KindQuoteRejected                   NotificationKind = "quote_rejected"
	KindRequestNoLongerAvailable        NotificationKind = "request_no_longer_available"
	KindJobFinalizedPendingConfirmation NotificationKind = "job_finalized_pending_confirmation"
	KindJobCompletedPleaseRate          NotificationKind = "job_completed_please_rate"
	KindJobCancelled                    NotificationKind = "job_cancelled"
)

// ReferenceKind names the entity a notification points at.
type ReferenceKind string

const (
	RefRequest ReferenceKind = "request"
	RefQuote   ReferenceKind = "quote"
	RefJob     ReferenceKind = "job"
)
