package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tutorbridge/backend/internal/apperrors"
)

// errorBody is the uniform error envelope returned by every endpoint.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

// writeError maps a classified error to its status and code; anything
// unclassified becomes an opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.FromError(err); ok {
		writeJSON(w, appErr.HTTPStatus, errorBody{Error: errorDetail{
			Code:    string(appErr.Code),
			Message: appErr.Message,
		}})
		return
	}

	log.Printf("Unhandled error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	}})
}
