package meeting

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/models"
)

const (
	// defaultCreateOffset puts a synthesized start time far enough in the
	// future that the provider accepts a "now-ish" permanent room.
	defaultCreateOffset = 2 * time.Minute

	defaultPermanentTitle  = "Permanent Tutor Room"
	defaultDurationMinutes = 60
)

// PermanentLinkService is the permanent link state machine: Unset → Active
// → Invalidated → Active, with Active→Active reuse. The provider is the
// source of truth for liveness; the persisted record is a cache that gets
// validated on every read.
type PermanentLinkService struct {
	db       *gorm.DB
	calendar CalendarAPI
	events   Broadcaster
	now      func() time.Time
}

// NewPermanentLinkService creates the permanent link cache.
func NewPermanentLinkService(db *gorm.DB, calendar CalendarAPI, events Broadcaster) *PermanentLinkService {
	return &PermanentLinkService{
		db:       db,
		calendar: calendar,
		events:   events,
		now:      time.Now,
	}
}

// PermanentLinkRequest are the get-or-create parameters. ScheduledTime and
// Title are optional; DurationMinutes defaults to an hour.
type PermanentLinkRequest struct {
	TutorID         int
	Title           string
	ScheduledTime   string
	DurationMinutes int
	ForceNew        bool
}

// PermanentLinkDetails is the public shape of the tutor's permanent link.
type PermanentLinkDetails struct {
	MeetingID       string     `json:"meeting_id"`
	JoinURL         string     `json:"join_url"`
	CalendarEventID string     `json:"calendar_event_id"`
	CreatedAt       *time.Time `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	UsageCount      int64      `json:"usage_count"`
	InvalidatedAt   *time.Time `json:"invalidated_at"`
}

// GetOrCreate returns the tutor's reusable meeting link, creating,
// validating, invalidating or regenerating it as needed. The whole
// read-validate-create sequence runs under the per-tutor provisioning
// lease so concurrent calls cannot race to create duplicate events.
func (s *PermanentLinkService) GetOrCreate(ctx context.Context, req PermanentLinkRequest) (*PermanentLinkDetails, error) {
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	// Fail fast on unknown tutors before taking the lease; the lease claim
	// itself would spin on a missing row.
	if _, err := findTutor(ctx, s.db, req.TutorID); err != nil {
		return nil, err
	}

	owner, err := acquireMeetLease(ctx, s.db, req.TutorID)
	if err != nil {
		return nil, err
	}
	defer releaseMeetLease(s.db, req.TutorID, owner)

	// Re-read under the lease: another instance may have just provisioned.
	tutor, err := findTutor(ctx, s.db, req.TutorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	hadExisting := tutor.PermanentMeet.CalendarEventID != nil && *tutor.PermanentMeet.CalendarEventID != ""

	if !req.ForceNew && tutor.PermanentMeet.Active() {
		eventID := *tutor.PermanentMeet.CalendarEventID
		status, err := s.calendar.GetEventStatus(ctx, tutor.GoogleOAuth.Token(), eventID)
		if err != nil {
			return nil, err
		}

		if status.Valid {
			// Active→Active reuse: never create a new resource to satisfy a read.
			if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
				Where("id = ?", tutor.ID).Updates(map[string]interface{}{
				"permanent_meet_usage_count":  gorm.Expr("permanent_meet_usage_count + 1"),
				"permanent_meet_last_used_at": now,
			}).Error; err != nil {
				return nil, fmt.Errorf("record permanent link reuse for tutor %d: %w", tutor.ID, err)
			}

			emitLifecycle(s.events, "permanent_link_reused", tutor.ID, eventID, deref(tutor.PermanentMeet.MeetingID))
			return s.currentDetails(ctx, tutor.ID)
		}

		// Active→Invalidated: a stale link is never served. Retained for audit.
		if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
			Where("id = ?", tutor.ID).
			Update("permanent_meet_invalidated_at", now).Error; err != nil {
			return nil, fmt.Errorf("invalidate permanent link for tutor %d: %w", tutor.ID, err)
		}
		emitLifecycle(s.events, "permanent_link_invalidated", tutor.ID, eventID, deref(tutor.PermanentMeet.MeetingID))
	}

	scheduled := req.ScheduledTime
	if scheduled == "" {
		scheduled = now.Add(defaultCreateOffset).Format(time.RFC3339)
	}
	slot, err := ValidateTimeSlot(scheduled, req.DurationMinutes, now)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = defaultPermanentTitle
	}

	details, err := s.calendar.CreateEventWithConferencing(ctx, tutor.GoogleOAuth.Token(), title, slot.Start, slot.End)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
		Where("id = ?", tutor.ID).Updates(map[string]interface{}{
		"permanent_meet_join_url":          details.JoinURL,
		"permanent_meet_meeting_id":        details.MeetingID,
		"permanent_meet_calendar_event_id": details.CalendarEventID,
		"permanent_meet_created_at":        now,
		"permanent_meet_last_used_at":      now,
		"permanent_meet_invalidated_at":    nil,
		"permanent_meet_usage_count":       gorm.Expr("permanent_meet_usage_count + 1"),
	}).Error; err != nil {
		return nil, fmt.Errorf("persist permanent link for tutor %d: %w", tutor.ID, err)
	}

	eventName := "permanent_link_assigned"
	if hadExisting || req.ForceNew {
		eventName = "permanent_link_regenerated"
	}
	emitLifecycle(s.events, eventName, tutor.ID, details.CalendarEventID, details.MeetingID)

	return s.currentDetails(ctx, tutor.ID)
}

// AuditSweep re-validates every non-invalidated permanent link of connected
// tutors and marks stale ones invalidated. Job entry point: per-tutor
// failures are logged and skipped so one bad credential does not starve
// the sweep.
func (s *PermanentLinkService) AuditSweep(ctx context.Context) (checked, invalidated int, err error) {
	var tutors []models.Tutor
	if err := s.db.WithContext(ctx).
		Where("permanent_meet_calendar_event_id IS NOT NULL AND permanent_meet_invalidated_at IS NULL").
		Where("google_oauth_refresh_token IS NOT NULL").
		Find(&tutors).Error; err != nil {
		return 0, 0, fmt.Errorf("list tutors with active links: %w", err)
	}

	for _, tutor := range tutors {
		eventID := deref(tutor.PermanentMeet.CalendarEventID)
		status, err := s.calendar.GetEventStatus(ctx, tutor.GoogleOAuth.Token(), eventID)
		if err != nil {
			log.Printf("Link audit: tutor %d check failed: %v", tutor.ID, err)
			continue
		}
		checked++
		if status.Valid {
			continue
		}

		if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
			Where("id = ? AND permanent_meet_invalidated_at IS NULL", tutor.ID).
			Update("permanent_meet_invalidated_at", s.now().UTC()).Error; err != nil {
			log.Printf("Link audit: tutor %d invalidation failed: %v", tutor.ID, err)
			continue
		}
		invalidated++
		emitLifecycle(s.events, "permanent_link_invalidated", tutor.ID, eventID, deref(tutor.PermanentMeet.MeetingID))
	}
	return checked, invalidated, nil
}

// ClearExpiredLeases releases provisioning leases whose holders died.
func (s *PermanentLinkService) ClearExpiredLeases(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Tutor{}).
		Where("meet_lease_owner IS NOT NULL AND meet_lease_expires_at < ?", s.now().UTC()).
		Updates(map[string]interface{}{
			"meet_lease_owner":      nil,
			"meet_lease_expires_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("clear expired leases: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// currentDetails re-reads the persisted record so counters reflect this call.
func (s *PermanentLinkService) currentDetails(ctx context.Context, tutorID int) (*PermanentLinkDetails, error) {
	tutor, err := findTutor(ctx, s.db, tutorID)
	if err != nil {
		return nil, err
	}

	link := tutor.PermanentMeet
	return &PermanentLinkDetails{
		MeetingID:       deref(link.MeetingID),
		JoinURL:         deref(link.JoinURL),
		CalendarEventID: deref(link.CalendarEventID),
		CreatedAt:       link.CreatedAt,
		LastUsedAt:      link.LastUsedAt,
		UsageCount:      link.UsageCount,
		InvalidatedAt:   link.InvalidatedAt,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
