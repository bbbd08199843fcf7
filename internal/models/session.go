// internal/models/session.go
package models

import "time"

// Session status values the reminder scans consider upcoming.
const (
	SessionStatusScheduled = "scheduled"
	SessionStatusUpcoming  = "upcoming"
	SessionStatusCancelled = "cancelled"
)

// Attendance status values on session_attendees.
const (
	AttendanceAttending = "attending"
	AttendanceAttended  = "attended"
	AttendancePending   = "pending"
	AttendanceDeclined  = "declined"
)

// StudySession is a scheduled study-group session. The notification
// subsystem only reads these rows; session CRUD lives elsewhere.
type StudySession struct {
	ID        int64     `json:"session_id" db:"session_id"`
	GroupID   int64     `json:"group_id" db:"group_id"`
	Title     string    `json:"title" db:"title"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	Status    string    `json:"status" db:"status"`
	CreatedBy string    `json:"created_by" db:"created_by"`
}

// SessionAttendee links a user to a session with an attendance status.
type SessionAttendee struct {
	SessionID int64  `json:"session_id" db:"session_id"`
	UserID    string `json:"user_id" db:"user_id"`
	Status    string `json:"attendance_status" db:"attendance_status"`
}
