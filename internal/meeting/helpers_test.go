package meeting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tutorbridge/backend/internal/google"
	"github.com/tutorbridge/backend/internal/models"
)

var testDBCounter int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:meeting_test_%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// SQLite cannot take concurrent writers; one connection serializes them.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Tutor{}, &models.AdHocMeeting{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func createTutor(t *testing.T, db *gorm.DB, refreshToken string) *models.Tutor {
	t.Helper()

	tutor := &models.Tutor{
		Name:      "Test Tutor",
		Email:     fmt.Sprintf("tutor%d@example.com", time.Now().UnixNano()),
		Password:  "hashed",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if refreshToken != "" {
		now := time.Now().UTC()
		tutor.GoogleOAuth = models.OAuthCredential{
			RefreshToken: &refreshToken,
			Scopes:       "https://www.googleapis.com/auth/calendar.events",
			ConnectedAt:  &now,
		}
	}
	if err := db.Create(tutor).Error; err != nil {
		t.Fatalf("failed to create tutor: %v", err)
	}
	return tutor
}

func reloadTutor(t *testing.T, db *gorm.DB, id int) *models.Tutor {
	t.Helper()

	var tutor models.Tutor
	if err := db.First(&tutor, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload tutor: %v", err)
	}
	return &tutor
}

// fakeCalendar implements CalendarAPI with scripted behavior and counts
// every provider call.
type fakeCalendar struct {
	mu          sync.Mutex
	createCalls int
	statusCalls int

	createErr   error
	statusErr   error
	statusValid bool
	nextEventID int
}

func (f *fakeCalendar) CreateEventWithConferencing(ctx context.Context, refreshToken, title string, start, end time.Time) (*google.EventDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextEventID++
	id := fmt.Sprintf("evt-%d", f.nextEventID)
	return &google.EventDetails{
		JoinURL:         "https://meet.google.com/" + id,
		MeetingID:       "meet-" + id,
		CalendarEventID: id,
	}, nil
}

func (f *fakeCalendar) GetEventStatus(ctx context.Context, refreshToken, calendarEventID string) (*google.EventStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if !f.statusValid {
		return &google.EventStatus{Valid: false}, nil
	}
	return &google.EventStatus{Valid: true, JoinURL: "https://meet.google.com/" + calendarEventID}, nil
}

func (f *fakeCalendar) counts() (creates, statuses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.statusCalls
}

// fakeBroadcaster records broadcast lifecycle events.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBroadcaster) Broadcast(msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if evt, ok := payload.(lifecycleEvent); ok {
		f.events = append(f.events, evt.Event)
	}
	return nil
}

func (f *fakeBroadcaster) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func futureSlot(offset time.Duration) string {
	return time.Now().Add(offset).UTC().Format(time.RFC3339)
}
