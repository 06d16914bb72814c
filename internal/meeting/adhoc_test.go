package meeting

import (
	"context"
	"testing"
	"time"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/models"
)

func TestAdHocCreate(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "rt")
	calendar := &fakeCalendar{}
	svc := NewAdHocService(db, calendar)

	details, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:         tutor.ID,
		StudentID:       77,
		Title:           "Algebra session",
		ScheduledTime:   futureSlot(time.Hour),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.JoinURL == "" || details.MeetingID == "" {
		t.Fatalf("expected populated details, got %+v", details)
	}
	if !details.EndTime.Equal(details.StartTime.Add(45 * time.Minute)) {
		t.Fatalf("expected a 45 minute slot, got %v to %v", details.StartTime, details.EndTime)
	}

	var record models.AdHocMeeting
	if err := db.First(&record, "tutor_id = ?", tutor.ID).Error; err != nil {
		t.Fatalf("expected a persisted meeting record: %v", err)
	}
	if record.StudentID != 77 {
		t.Fatalf("unexpected student id: %d", record.StudentID)
	}
	if record.ID == "" {
		t.Fatal("expected a generated meeting record id")
	}
}

func TestAdHocCreateDefaultsDuration(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "rt")
	svc := NewAdHocService(db, &fakeCalendar{})

	details, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:       tutor.ID,
		StudentID:     1,
		ScheduledTime: futureSlot(time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !details.EndTime.Equal(details.StartTime.Add(60 * time.Minute)) {
		t.Fatal("expected the default 60 minute duration")
	}
}

func TestAdHocCreateWithoutCredential(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "")
	calendar := &fakeCalendar{}
	svc := NewAdHocService(db, calendar)

	_, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:       tutor.ID,
		StudentID:     1,
		ScheduledTime: futureSlot(time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeAuthFailed) {
		t.Fatalf("expected AUTH_FAILED, got %v", err)
	}

	if creates, _ := calendar.counts(); creates != 0 {
		t.Fatalf("expected zero provider calls, got %d", creates)
	}
}

func TestAdHocCreateInvalidSlot(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "rt")
	calendar := &fakeCalendar{}
	svc := NewAdHocService(db, calendar)

	_, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:       tutor.ID,
		StudentID:     1,
		ScheduledTime: futureSlot(-time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeInvalidTimeSlot) {
		t.Fatalf("expected INVALID_TIME_SLOT, got %v", err)
	}
	if creates, _ := calendar.counts(); creates != 0 {
		t.Fatalf("expected zero provider calls, got %d", creates)
	}
}

func TestAdHocCreateUnknownTutor(t *testing.T) {
	db := newTestDB(t)
	svc := NewAdHocService(db, &fakeCalendar{})

	_, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:       9999,
		StudentID:     1,
		ScheduledTime: futureSlot(time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeTutorNotFound) {
		t.Fatalf("expected TUTOR_NOT_FOUND, got %v", err)
	}
}

func TestAdHocCreatePropagatesProviderError(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "rt")
	calendar := &fakeCalendar{createErr: apperrors.New(apperrors.CodeQuotaExceeded, 429, "Quota exceeded")}
	svc := NewAdHocService(db, calendar)

	_, err := svc.Create(context.Background(), AdHocRequest{
		TutorID:       tutor.ID,
		StudentID:     1,
		ScheduledTime: futureSlot(time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeQuotaExceeded) {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}

	var count int64
	db.Model(&models.AdHocMeeting{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no persisted record after provider failure, got %d", count)
	}
}

func TestPurgeFinished(t *testing.T) {
	db := newTestDB(t)
	tutor := createTutor(t, db, "rt")

	old := models.AdHocMeeting{
		ID:              "11111111-1111-1111-1111-111111111111",
		TutorID:         tutor.ID,
		StudentID:       1,
		MeetingID:       "m1",
		CalendarEventID: "e1",
		JoinURL:         "https://meet.google.com/old",
		StartTime:       time.Now().Add(-48 * time.Hour),
		EndTime:         time.Now().Add(-47 * time.Hour),
		CreatedAt:       time.Now().Add(-48 * time.Hour),
	}
	recent := models.AdHocMeeting{
		ID:              "22222222-2222-2222-2222-222222222222",
		TutorID:         tutor.ID,
		StudentID:       2,
		MeetingID:       "m2",
		CalendarEventID: "e2",
		JoinURL:         "https://meet.google.com/recent",
		StartTime:       time.Now().Add(-time.Hour),
		EndTime:         time.Now().Add(-30 * time.Minute),
		CreatedAt:       time.Now().Add(-time.Hour),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("failed to seed meeting: %v", err)
	}
	if err := db.Create(&recent).Error; err != nil {
		t.Fatalf("failed to seed meeting: %v", err)
	}

	svc := NewAdHocService(db, &fakeCalendar{})
	purged, err := svc.PurgeFinished(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged record, got %d", purged)
	}

	var remaining []models.AdHocMeeting
	db.Find(&remaining)
	if len(remaining) != 1 || remaining[0].ID != recent.ID {
		t.Fatalf("expected only the recent meeting to remain, got %+v", remaining)
	}
}
