package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/models"
)

// AdHocService creates one-off meetings for a specific scheduled session.
// No caching, no reuse: every call produces a brand-new provider resource,
// so there is nothing to serialize per tutor.
type AdHocService struct {
	db       *gorm.DB
	calendar CalendarAPI
	now      func() time.Time
}

// NewAdHocService creates the ad-hoc meeting factory.
func NewAdHocService(db *gorm.DB, calendar CalendarAPI) *AdHocService {
	return &AdHocService{db: db, calendar: calendar, now: time.Now}
}

// AdHocRequest are the creation parameters for a single-session meeting.
type AdHocRequest struct {
	TutorID         int
	StudentID       int
	Title           string
	ScheduledTime   string
	DurationMinutes int
}

// AdHocDetails is the public shape of a created meeting.
type AdHocDetails struct {
	MeetingID string    `json:"meeting_id"`
	JoinURL   string    `json:"join_url"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Create validates the slot, requires a connected credential (AUTH_FAILED
// before any provider call otherwise) and persists the immutable meeting
// record.
func (s *AdHocService) Create(ctx context.Context, req AdHocRequest) (*AdHocDetails, error) {
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	slot, err := ValidateTimeSlot(req.ScheduledTime, req.DurationMinutes, s.now())
	if err != nil {
		return nil, err
	}

	tutor, err := findTutor(ctx, s.db, req.TutorID)
	if err != nil {
		return nil, err
	}
	if !tutor.GoogleOAuth.Connected() {
		return nil, apperrors.NotConnected()
	}

	details, err := s.calendar.CreateEventWithConferencing(ctx, tutor.GoogleOAuth.Token(), req.Title, slot.Start, slot.End)
	if err != nil {
		return nil, err
	}

	record := models.AdHocMeeting{
		ID:              uuid.NewString(),
		TutorID:         tutor.ID,
		StudentID:       req.StudentID,
		MeetingID:       details.MeetingID,
		CalendarEventID: details.CalendarEventID,
		JoinURL:         details.JoinURL,
		Title:           req.Title,
		StartTime:       slot.Start,
		EndTime:         slot.End,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("persist ad-hoc meeting for tutor %d: %w", tutor.ID, err)
	}

	return &AdHocDetails{
		MeetingID: record.MeetingID,
		JoinURL:   record.JoinURL,
		StartTime: record.StartTime,
		EndTime:   record.EndTime,
	}, nil
}

// PurgeFinished deletes ad-hoc meeting records that ended before the
// cutoff. Calendar events are left to the tutor's own calendar.
func (s *AdHocService) PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("end_time < ?", cutoff).
		Delete(&models.AdHocMeeting{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge finished ad-hoc meetings: %w", result.Error)
	}
	return result.RowsAffected, nil
}
