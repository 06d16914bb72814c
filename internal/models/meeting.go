package models

import "time"

// AdHocMeeting is a single-use meeting resource created for one scheduled
// session. It is immutable once written and maps one-to-one to a calendar
// event owned by the tutor's Google account.
type AdHocMeeting struct {
	ID              string    `json:"id" gorm:"primaryKey"` // uuid
	TutorID         int       `json:"tutor_id" gorm:"index;not null"`
	StudentID       int       `json:"student_id" gorm:"index;not null"`
	MeetingID       string    `json:"meeting_id" gorm:"not null"`
	CalendarEventID string    `json:"calendar_event_id" gorm:"not null"`
	JoinURL         string    `json:"join_url" gorm:"not null"`
	Title           string    `json:"title" gorm:"not null"`
	StartTime       time.Time `json:"start_time" gorm:"not null"`
	EndTime         time.Time `json:"end_time" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for AdHocMeeting
func (AdHocMeeting) TableName() string {
	return "ad_hoc_meetings"
}
