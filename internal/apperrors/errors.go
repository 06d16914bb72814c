package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a member of the closed error taxonomy. Every error that
// crosses a component boundary in the meeting core carries exactly one code.
type Code string

const (
	// CodeAuthConfigurationMissing means the Google client credentials or
	// redirect URI are not configured. Deployment problem, not user-actionable.
	CodeAuthConfigurationMissing Code = "AUTH_CONFIGURATION_MISSING"

	// CodeAuthFailed means the stored credential is missing, expired or
	// revoked. The tutor has to reconnect their Google account.
	CodeAuthFailed Code = "AUTH_FAILED"

	// CodeQuotaExceeded maps Google's quota-specific 403 responses.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// CodePermissionDenied covers non-quota 403 responses.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeProviderError is the catch-all for unclassified upstream failures,
	// including network errors.
	CodeProviderError Code = "GOOGLE_API_ERROR"

	// CodeInvalidTimeSlot is a caller input error on (scheduledTime, duration).
	CodeInvalidTimeSlot Code = "INVALID_TIME_SLOT"

	// CodeMeetingLinkFailed means the provider accepted the event but the
	// response was missing the join URL, meeting id or event id.
	CodeMeetingLinkFailed Code = "MEETING_LINK_FAILED"

	// CodeMeetingLinkInvalid is an internal signal that a cached permanent
	// link no longer resolves to a live event. It triggers invalidation and
	// is never surfaced as an HTTP error.
	CodeMeetingLinkInvalid Code = "MEETING_LINK_INVALID"

	// CodeTutorNotFound means the referenced tutor record does not exist.
	CodeTutorNotFound Code = "TUTOR_NOT_FOUND"
)

// Error is a classified failure with an HTTP status hint for the boundary
// layer. It wraps the originating error when there is one.
type Error struct {
	Code       Code
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, status int, format string, args ...interface{}) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(code Code, status int, message string, err error) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: message, Err: err}
}

// FromError extracts the classified error from err's chain, if any.
func FromError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	appErr, ok := FromError(err)
	return ok && appErr.Code == code
}

// AuthConfigurationMissing is the canonical misconfiguration error.
func AuthConfigurationMissing() *Error {
	return New(CodeAuthConfigurationMissing, http.StatusInternalServerError,
		"Google OAuth credentials are not configured")
}

// NotConnected is the canonical "tutor has no linked Google account" error.
func NotConnected() *Error {
	return New(CodeAuthFailed, http.StatusUnauthorized,
		"Google account is not connected. Please connect your Google account first.")
}
