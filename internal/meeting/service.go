package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/google"
	"github.com/tutorbridge/backend/internal/models"
)

// CalendarAPI is the provider capability the meeting services depend on.
// Satisfied by *google.CalendarClient; tests substitute fakes.
type CalendarAPI interface {
	CreateEventWithConferencing(ctx context.Context, refreshToken, title string, start, end time.Time) (*google.EventDetails, error)
	GetEventStatus(ctx context.Context, refreshToken, calendarEventID string) (*google.EventStatus, error)
}

// Broadcaster fans lifecycle events out to connected dashboard clients.
// Satisfied by *events.Hub.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// lifecycleEvent is the structured audit record emitted on every
// permanent-link outcome.
type lifecycleEvent struct {
	Event           string    `json:"event"`
	TutorID         int       `json:"tutor_id"`
	CalendarEventID string    `json:"calendar_event_id"`
	MeetingID       string    `json:"meeting_id"`
	At              time.Time `json:"at"`
}

// emitLifecycle logs the event and broadcasts it. Emission never fails the
// meeting operation that produced it.
func emitLifecycle(events Broadcaster, name string, tutorID int, calendarEventID, meetingID string) {
	evt := lifecycleEvent{
		Event:           name,
		TutorID:         tutorID,
		CalendarEventID: calendarEventID,
		MeetingID:       meetingID,
		At:              time.Now().UTC(),
	}

	if data, err := json.Marshal(evt); err == nil {
		log.Printf("meeting lifecycle: %s", data)
	}

	if events != nil {
		if err := events.Broadcast("meeting_lifecycle", evt); err != nil {
			log.Printf("Failed to broadcast lifecycle event %s: %v", name, err)
		}
	}
}

// findTutor loads a tutor or fails TUTOR_NOT_FOUND.
func findTutor(ctx context.Context, db *gorm.DB, tutorID int) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := db.WithContext(ctx).First(&tutor, "id = ?", tutorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeTutorNotFound, http.StatusNotFound, "Tutor not found")
		}
		return nil, fmt.Errorf("load tutor %d: %w", tutorID, err)
	}
	return &tutor, nil
}
