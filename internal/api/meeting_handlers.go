package api

import (
	"encoding/json"
	"net/http"

	"github.com/tutorbridge/backend/internal/meeting"
)

// CreateMeetingRequest represents the ad-hoc meeting creation body
type CreateMeetingRequest struct {
	StudentID       int    `json:"student_id"`
	Title           string `json:"title"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// PermanentLinkBody represents the permanent link request body
type PermanentLinkBody struct {
	Title           string `json:"title"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"duration_minutes"`
	ForceNew        bool   `json:"force_new"`
}

// HandleCreateMeeting creates a one-off meeting for a scheduled session
func HandleCreateMeeting(svc *meeting.AdHocService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateMeetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		details, err := svc.Create(r.Context(), meeting.AdHocRequest{
			TutorID:         tutor.ID,
			StudentID:       req.StudentID,
			Title:           req.Title,
			ScheduledTime:   req.ScheduledTime,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, details)
	}
}

// HandleGetPermanentLink returns the tutor's reusable meeting link, creating
// or regenerating it when needed.
func HandleGetPermanentLink(svc *meeting.PermanentLinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req PermanentLinkBody
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
		}

		details, err := svc.GetOrCreate(r.Context(), meeting.PermanentLinkRequest{
			TutorID:         tutor.ID,
			Title:           req.Title,
			ScheduledTime:   req.ScheduledTime,
			DurationMinutes: req.DurationMinutes,
			ForceNew:        req.ForceNew,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}
