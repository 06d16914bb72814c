package models

import "time"

// OAuthCredential is the tutor's stored Google OAuth grant. The refresh
// token being nil is what "not connected" means; RevokedAt is only set by an
// explicit revoke and is cleared whenever a new refresh token is stored.
type OAuthCredential struct {
	RefreshToken *string    `json:"-" gorm:"column:refresh_token"`
	Scopes       string     `json:"scopes" gorm:"column:scopes"` // space-separated, OAuth wire format
	ExpiresAt    *time.Time `json:"expires_at" gorm:"column:expires_at"`
	ConnectedAt  *time.Time `json:"connected_at" gorm:"column:connected_at"`
	RevokedAt    *time.Time `json:"revoked_at" gorm:"column:revoked_at"`
}

// Connected reports whether a usable refresh token is stored.
func (c OAuthCredential) Connected() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}

// Token returns the stored refresh token or the empty string.
func (c OAuthCredential) Token() string {
	if c.RefreshToken == nil {
		return ""
	}
	return *c.RefreshToken
}

// PermanentLink is the tutor's reusable meeting room. There is at most one
// per tutor; an invalidated link is kept for its usage history and replaced
// in place on the next successful provisioning.
type PermanentLink struct {
	JoinURL         *string    `json:"join_url" gorm:"column:join_url"`
	MeetingID       *string    `json:"meeting_id" gorm:"column:meeting_id"`
	CalendarEventID *string    `json:"calendar_event_id" gorm:"column:calendar_event_id"`
	CreatedAt       *time.Time `json:"created_at" gorm:"column:created_at"`
	LastUsedAt      *time.Time `json:"last_used_at" gorm:"column:last_used_at"`
	UsageCount      int64      `json:"usage_count" gorm:"column:usage_count;default:0"`
	InvalidatedAt   *time.Time `json:"invalidated_at" gorm:"column:invalidated_at"`
}

// Active reports whether the link exists and has not been invalidated.
func (l PermanentLink) Active() bool {
	return l.CalendarEventID != nil && *l.CalendarEventID != "" && l.InvalidatedAt == nil
}

// ProvisionLease guards the read-validate-create sequence for the permanent
// link. It is claimed with a conditional update so concurrent stateless
// instances serialize on the same tutor row.
type ProvisionLease struct {
	Owner     *string    `json:"-" gorm:"column:owner"`
	ExpiresAt *time.Time `json:"-" gorm:"column:expires_at"`
}

// Tutor represents a tutor account together with its Google credential,
// permanent meeting link and provisioning lease sub-records.
type Tutor struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"` // Never expose password hash in JSON
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`

	GoogleOAuth   OAuthCredential `json:"google_oauth" gorm:"embedded;embeddedPrefix:google_oauth_"`
	PermanentMeet PermanentLink   `json:"permanent_meet" gorm:"embedded;embeddedPrefix:permanent_meet_"`
	MeetLease     ProvisionLease  `json:"-" gorm:"embedded;embeddedPrefix:meet_lease_"`
}

// TableName specifies the table name for Tutor
func (Tutor) TableName() string {
	return "tutors"
}
