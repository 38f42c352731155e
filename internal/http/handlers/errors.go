package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// they never change once released. The rate limiter in middleware answers
// with "too_many_requests" on its own.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized" // no X-User-ID
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeListFailed       = "list_failed"
	ErrCodeDisconnectFailed = "disconnect_failed"

	// Manual automation runs.
	ErrCodeRunFailed          = "run_failed"      // upstream or dispatch failure, 502
	ErrCodeRunBusy            = "run_in_progress" // the poller holds the user
	ErrCodeAutomationInactive = "automation_inactive"
	ErrCodeReconnectRequired  = "reconnect_required" // credential missing or unreadable
)
