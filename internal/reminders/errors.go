package reminders

import (
	"errors"
	"net/http"
)

// Error codes returned to callers.
const (
	CodeMissingAuth     = "missing_auth"
	CodeInvalidToken    = "invalid_token"
	CodeNoRefreshToken  = "no_refresh_token"
	CodeInvalidGrant    = "invalid_grant"
	CodeNoEvents        = "no_events"
	CodeBatchInProgress = "batch_in_progress"
	CodeInvalidRequest  = "invalid_request"
	CodeNotFound        = "not_found"
	CodeServerError     = "server_error"
)

// ErrNoCredential is returned by a CredentialStore when the user never
// granted calendar access.
var ErrNoCredential = errors.New("no delegated credential stored")

// Error is a typed gateway failure. Every hard failure of the service is
// one of these.
type Error struct {
	Code        string
	Message     string
	Status      int
	NeedsReauth bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func errNoRefreshToken() *Error {
	return &Error{
		Code:        CodeNoRefreshToken,
		Message:     "No calendar access granted for this user",
		Status:      http.StatusForbidden,
		NeedsReauth: true,
	}
}

func errInvalidGrant(err error) *Error {
	return &Error{
		Code:        CodeInvalidGrant,
		Message:     "Calendar access was revoked or has expired",
		Status:      http.StatusUnauthorized,
		NeedsReauth: true,
		Err:         err,
	}
}

func errNoEvents() *Error {
	return &Error{Code: CodeNoEvents, Message: "No events to create", Status: http.StatusBadRequest}
}

func errBatchInProgress(batchID string) *Error {
	return &Error{
		Code:    CodeBatchInProgress,
		Message: "Batch " + batchID + " is already being submitted",
		Status:  http.StatusConflict,
	}
}

func errInvalidRequest(message string, err error) *Error {
	return &Error{Code: CodeInvalidRequest, Message: message, Status: http.StatusBadRequest, Err: err}
}

func errNotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func errServer(message string, err error) *Error {
	return &Error{Code: CodeServerError, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// codeOf returns the error code for metrics; nil maps to "ok".
func codeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return CodeServerError
}
