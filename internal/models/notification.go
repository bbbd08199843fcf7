// internal/models/notification.go
package models

import "time"

// Notification type constants. The store rejects anything outside
// this set before touching the database.
const (
	TypeSessionReminder = "session_reminder"
	TypeGroupInvite     = "group_invite"
	TypeProgressUpdate  = "progress_update"
	TypePartnerMatch    = "partner_match"
	TypeMessage         = "message"
	TypeSystem          = "system"
)

// ValidNotificationTypes is the closed set of accepted notification types.
var ValidNotificationTypes = []string{
	TypeSessionReminder,
	TypeGroupInvite,
	TypeProgressUpdate,
	TypePartnerMatch,
	TypeMessage,
	TypeSystem,
}

// IsValidNotificationType reports whether t is one of the enumerated types.
func IsValidNotificationType(t string) bool {
	for _, v := range ValidNotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Notification is one row of the notifications table. ScheduledFor nil
// means "deliver immediately"; SentAt is set once by the dispatcher and
// never cleared.
type Notification struct {
	ID           int64                  `json:"notification_id" db:"notification_id"`
	UserID       string                 `json:"user_id" db:"user_id"`
	Type         string                 `json:"notification_type" db:"notification_type"`
	Title        string                 `json:"title" db:"title"`
	Message      string                 `json:"message" db:"message"`
	Metadata     map[string]interface{} `json:"metadata" db:"metadata"`
	ScheduledFor *time.Time             `json:"scheduled_for" db:"scheduled_for"`
	SentAt       *time.Time             `json:"sent_at" db:"sent_at"`
	IsRead       bool                   `json:"is_read" db:"is_read"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}

// IsPending reports whether the row is due for dispatch: scheduled,
// the scheduled time has arrived, and not yet sent.
func (n *Notification) IsPending(now time.Time) bool {
	return n.ScheduledFor != nil && !n.ScheduledFor.After(now) && n.SentAt == nil
}

// NotificationCounts is the aggregate returned by GET /counts.
type NotificationCounts struct {
	Total           int `json:"total"`
	Unread          int `json:"unread"`
	UnreadReminders int `json:"unread_reminders"`
	UnreadInvites   int `json:"unread_invites"`
	UnreadMatches   int `json:"unread_matches"`
}
