package internal

import "net/http"

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalValue is returned when any field in the transferred data does not validate for some reason -
	// out-of-range scores and item IDs, oversize notes and malformed email addresses all end up here
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeUserNotFound is returned when an operation references a user that has not joined the event
	ErrCodeUserNotFound = "USER_NOT_FOUND"
	// ErrCodeItemNotFound is returned when a referenced item does not exist
	ErrCodeItemNotFound = "ITEM_NOT_FOUND"
	// ErrCodeStateConflict is returned when the expected lifecycle state a transition carries does not match the
	// event's actual state - somebody else has transitioned first; refresh and retry
	ErrCodeStateConflict = "STATE_CONFLICT"
	// ErrCodeInvalidTransition is returned when the requested lifecycle edge does not exist in the transition graph
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	// ErrCodeEventNotStarted is returned when a rating operation is attempted while the event is not running
	ErrCodeEventNotStarted = "EVENT_NOT_STARTED"
	// ErrCodeEventAccessDenied is returned when a session token is presented at an event it was not issued for
	ErrCodeEventAccessDenied = "EVENT_ACCESS_DENIED"
	// ErrCodeAdminRequired is returned when a non-administrator attempts an administrator-only operation
	ErrCodeAdminRequired = "ADMIN_REQUIRED"
	// ErrCodeOwnerRequired is returned when somebody other than the event owner attempts an owner-only operation
	ErrCodeOwnerRequired = "OWNER_REQUIRED"
	// ErrCodeAdminExists is returned when an email address is added to the administrators that is already one
	ErrCodeAdminExists = "ADMIN_ALREADY_EXISTS"
	// ErrCodeLastAdmin is returned when an operation would remove the event owner or the last remaining administrator
	ErrCodeLastAdmin = "LAST_ADMIN_PROTECTED"
	// ErrCodeJoinFailed is returned when joining an event fails - most commonly because of a wrong PIN
	ErrCodeJoinFailed = "JOIN_FAILED"
	// ErrCodeNotJoined is returned when the user tried to access an API that needs an active event session, but the
	// request carried no valid token
	ErrCodeNotJoined = "NOT_JOINED"
	// ErrCodeTooManyRequests is returned on the excess calls of a write burst that exceeds the per-user limit
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	// ErrCodeInsufficientRatings is returned when a similarity query is made before the user has rated enough items
	ErrCodeInsufficientRatings = "INSUFFICIENT_RATINGS"
)

var (
	// ErrNotJoined is the default error returned when an operation needs an event session and none is present
	ErrNotJoined = MakeError(
		http.StatusForbidden,
		ErrCodeNotJoined,
		"This function needs a joined event session",
	)
	// ErrEventAccessDenied is returned whenever a token is used at an event it does not belong to. The message is
	// deliberately the same for every mismatch - a token from event A learns nothing about event B
	ErrEventAccessDenied = MakeError(
		http.StatusForbidden,
		ErrCodeEventAccessDenied,
		"Your session does not belong to this event",
	)
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}
