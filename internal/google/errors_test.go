package google

import (
	"errors"
	"net/http"
	"testing"

	"golang.org/x/oauth2"

	"github.com/tutorbridge/backend/internal/apperrors"
)

func TestNewAPIErrorParsesCalendarEnvelope(t *testing.T) {
	body := []byte(`{"error":{"code":403,"message":"Rate Limit Exceeded","errors":[{"reason":"rateLimitExceeded"}]}}`)

	apiErr := newAPIError(403, body)
	if apiErr.Status != 403 {
		t.Fatalf("expected status 403, got %d", apiErr.Status)
	}
	if apiErr.Reason != "rateLimitExceeded" {
		t.Fatalf("expected reason rateLimitExceeded, got %q", apiErr.Reason)
	}
	if apiErr.Message != "Rate Limit Exceeded" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestNewAPIErrorParsesOAuthShape(t *testing.T) {
	body := []byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)

	apiErr := newAPIError(400, body)
	if apiErr.OAuthError != "invalid_grant" {
		t.Fatalf("expected invalid_grant, got %q", apiErr.OAuthError)
	}
	if apiErr.Message != "Token has been expired or revoked." {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestNewAPIErrorKeepsUnparseableBody(t *testing.T) {
	apiErr := newAPIError(502, []byte("bad gateway"))
	if apiErr.Message != "bad gateway" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestMapErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   apperrors.Code
		wantStatus int
	}{
		{
			name:       "invalid_grant",
			err:        newAPIError(400, []byte(`{"error":"invalid_grant"}`)),
			wantCode:   apperrors.CodeAuthFailed,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unauthorized",
			err:        newAPIError(401, []byte(`{"error":{"message":"Invalid Credentials"}}`)),
			wantCode:   apperrors.CodeAuthFailed,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "quota exceeded",
			err:        newAPIError(403, []byte(`{"error":{"message":"Quota exceeded","errors":[{"reason":"quotaExceeded"}]}}`)),
			wantCode:   apperrors.CodeQuotaExceeded,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "rate limit exceeded",
			err:        newAPIError(403, []byte(`{"error":{"message":"Rate limited","errors":[{"reason":"userRateLimitExceeded"}]}}`)),
			wantCode:   apperrors.CodeQuotaExceeded,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "plain forbidden",
			err:        newAPIError(403, []byte(`{"error":{"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions"}]}}`)),
			wantCode:   apperrors.CodePermissionDenied,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "server error keeps status",
			err:        newAPIError(503, []byte(`{"error":{"message":"Backend Error"}}`)),
			wantCode:   apperrors.CodeProviderError,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "client error becomes 500",
			err:        newAPIError(404, []byte(`{"error":{"message":"Not Found"}}`)),
			wantCode:   apperrors.CodeProviderError,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "network error",
			err:        errors.New("dial tcp: connection refused"),
			wantCode:   apperrors.CodeProviderError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			appErr, ok := apperrors.FromError(mapped)
			if !ok {
				t.Fatalf("expected classified error, got %v", mapped)
			}
			if appErr.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
			if appErr.HTTPStatus != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, appErr.HTTPStatus)
			}
		})
	}
}

func TestMapErrorPassesThroughClassified(t *testing.T) {
	original := apperrors.NotConnected()
	if mapped := MapError(original); mapped != error(original) {
		t.Fatalf("expected pass-through, got %v", mapped)
	}
}

func TestMapErrorNil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestMapErrorOAuthRetrieveError(t *testing.T) {
	retrieveErr := &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: 400},
		Body:     []byte(`{"error":"invalid_grant","error_description":"Bad Request"}`),
	}

	mapped := MapError(retrieveErr)
	if !apperrors.IsCode(mapped, apperrors.CodeAuthFailed) {
		t.Fatalf("expected AUTH_FAILED, got %v", mapped)
	}
}

func TestMapErrorWrappedRetrieveError(t *testing.T) {
	retrieveErr := &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: 400},
		Body:      []byte(`{}`),
		ErrorCode: "invalid_grant",
	}
	wrapped := &wrapperError{inner: retrieveErr}

	mapped := MapError(wrapped)
	if !apperrors.IsCode(mapped, apperrors.CodeAuthFailed) {
		t.Fatalf("expected AUTH_FAILED, got %v", mapped)
	}
}

type wrapperError struct {
	inner error
}

func (w *wrapperError) Error() string { return "request failed: " + w.inner.Error() }
func (w *wrapperError) Unwrap() error { return w.inner }
