package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tutorbridge/backend/internal/apperrors"
)

// apiError is a structured failure read from a Google REST response before
// classification.
type apiError struct {
	Status     int
	Reason     string
	OAuthError string // e.g. "invalid_grant"
	Message    string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("google api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("google api error (status %d)", e.Status)
}

// newAPIError parses a Google error body. Two shapes occur in practice:
// the Calendar API envelope {"error":{"code":..,"message":..,"errors":[{"reason":..}]}}
// and the OAuth token endpoint shape {"error":"invalid_grant","error_description":".."}.
func newAPIError(status int, body []byte) *apiError {
	apiErr := &apiError{Status: status}

	var envelope struct {
		Error json.RawMessage `json:"error"`
		Desc  string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = string(body)
		return apiErr
	}

	var structured struct {
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(envelope.Error, &structured); err == nil && structured.Message != "" {
		apiErr.Message = structured.Message
		if len(structured.Errors) > 0 {
			apiErr.Reason = structured.Errors[0].Reason
		}
		return apiErr
	}

	var oauthErr string
	if err := json.Unmarshal(envelope.Error, &oauthErr); err == nil {
		apiErr.OAuthError = oauthErr
		apiErr.Message = envelope.Desc
		if apiErr.Message == "" {
			apiErr.Message = oauthErr
		}
	}
	return apiErr
}

// quotaReasons are the 403 reasons Google uses for quota exhaustion.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

// MapError translates an arbitrary provider failure into the closed error
// taxonomy. Errors that already carry a classification pass through
// unchanged; everything else is mapped exactly once, here.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := apperrors.FromError(err); ok {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		apiErr := newAPIError(status, retrieveErr.Body)
		if apiErr.OAuthError == "" {
			apiErr.OAuthError = retrieveErr.ErrorCode
		}
		return classify(apiErr)
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return classify(apiErr)
	}

	return apperrors.Wrap(apperrors.CodeProviderError, http.StatusInternalServerError,
		"google api request failed", err)
}

func classify(e *apiError) *apperrors.Error {
	message := e.Message
	if message == "" {
		message = "google api request failed"
	}

	switch {
	case e.OAuthError == "invalid_grant" || e.Status == http.StatusUnauthorized:
		return apperrors.Wrap(apperrors.CodeAuthFailed, http.StatusUnauthorized, message, e)
	case e.Status == http.StatusForbidden && quotaReasons[e.Reason]:
		return apperrors.Wrap(apperrors.CodeQuotaExceeded, http.StatusTooManyRequests, message, e)
	case e.Status == http.StatusForbidden:
		return apperrors.Wrap(apperrors.CodePermissionDenied, http.StatusForbidden, message, e)
	}

	status := http.StatusInternalServerError
	if e.Status >= 500 {
		status = e.Status
	}
	return apperrors.Wrap(apperrors.CodeProviderError, status, message, e)
}
