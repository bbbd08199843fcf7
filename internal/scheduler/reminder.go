// internal/scheduler/reminder.go

// Package scheduler implements the batch reminder scans over upcoming
// study sessions. Scans are idempotent across repeated invocations:
// de-duplication relies on a lookback window over already-created
// reminder rows, not on mutual exclusion, so the hourly and daily
// passes may interleave freely. A failed insert is not "already sent"
// and is naturally retried by the next invocation.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"studybuddy-backend/internal/common/config"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/metrics"
	"studybuddy-backend/internal/common/observability"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/store"
)

// NotificationCreator is the single store primitive the scans need.
type NotificationCreator interface {
	Create(ctx context.Context, p store.CreateParams) (*models.Notification, error)
}

// Scheduler runs the reminder scans. It reads sessions and attendees
// directly and writes notifications through the record store.
type Scheduler struct {
	db      *sql.DB
	creator NotificationCreator
	cfg     config.SchedulerConfig
	obs     *observability.Observability
	logger  logger.Logger
}

// New creates a Scheduler. obs may be nil.
func New(db *sql.DB, creator NotificationCreator, cfg config.SchedulerConfig, obs *observability.Observability, log logger.Logger) *Scheduler {
	return &Scheduler{
		db:      db,
		creator: creator,
		cfg:     cfg,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "reminder-scheduler"}),
	}
}

type reminderCandidate struct {
	SessionID int64
	GroupID   int64
	Title     string
	StartTime time.Time
	UserID    string
}

// ScanHourly creates a session_reminder for every (session, attendee)
// pair whose session starts within the next 60 minutes, skipping pairs
// that already received a reminder for the same session inside the
// lookback window. scheduled_for lands a few minutes in the future so
// the dispatcher's next poll picks it up. Errors are logged, never
// returned; this job has no caller to report to.
func (s *Scheduler) ScanHourly(ctx context.Context) int {
	started := time.Now()
	metrics.ReminderScansTotal.WithLabelValues("hourly").Inc()

	query := `SELECT s.session_id, s.group_id, s.title, s.start_time, a.user_id
		FROM study_sessions s
		JOIN session_attendees a ON a.session_id = s.session_id
		WHERE s.start_time > NOW()
		  AND s.start_time <= NOW() + INTERVAL '60 minutes'
		  AND s.status IN ('scheduled', 'upcoming')
		  AND a.attendance_status = 'attending'
		  AND NOT EXISTS (
		      SELECT 1 FROM notifications n
		      WHERE n.user_id = a.user_id
		        AND n.notification_type = 'session_reminder'
		        AND n.created_at > NOW() - make_interval(hours => $1)
		        AND n.metadata::jsonb @> jsonb_build_object('session_id', s.session_id)
		  )
		ORDER BY s.start_time, a.user_id`

	rows, err := s.db.QueryContext(ctx, query, s.cfg.DedupeLookback)
	if err != nil {
		metrics.ReminderScanFailures.WithLabelValues("hourly").Inc()
		s.recordJob(ctx, "hourly-scan", "failed", started)
		s.logger.WithError(err).Error("hourly scan query failed", nil)
		return 0
	}
	defer rows.Close()

	candidates, err := collectCandidates(rows)
	if err != nil {
		metrics.ReminderScanFailures.WithLabelValues("hourly").Inc()
		s.recordJob(ctx, "hourly-scan", "failed", started)
		s.logger.WithError(err).Error("hourly scan row read failed", nil)
		return 0
	}

	scheduledFor := time.Now().UTC().Add(time.Duration(s.cfg.DispatchBuffer) * time.Minute)
	created := 0
	for _, c := range candidates {
		if err := s.createReminder(ctx, c, scheduledFor, "hourly reminder"); err != nil {
			continue
		}
		created++
	}

	s.recordJob(ctx, "hourly-scan", "completed", started)
	s.logger.Info("hourly reminder scan finished", map[string]interface{}{
		"candidates": len(candidates),
		"created":    created,
	})
	return created
}

// ScheduleTwentyFourHour creates a reminder scheduled 24 hours before
// the session start for every attending user. One attendee's failure
// does not prevent the others; the returned count is the successes.
func (s *Scheduler) ScheduleTwentyFourHour(ctx context.Context, sessionID int64) (int, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	attendees, err := s.loadAttendees(ctx, sessionID, []string{models.AttendanceAttending})
	if err != nil {
		return 0, err
	}

	scheduledFor := session.StartTime.Add(-24 * time.Hour)
	created := 0
	for _, userID := range attendees {
		c := reminderCandidate{
			SessionID: session.ID,
			GroupID:   session.GroupID,
			Title:     session.Title,
			StartTime: session.StartTime,
			UserID:    userID,
		}
		if err := s.createReminder(ctx, c, scheduledFor, "24h reminder"); err != nil {
			continue
		}
		created++
	}

	s.logger.Info("24h reminders scheduled", map[string]interface{}{
		"sessionId": sessionID,
		"attendees": len(attendees),
		"created":   created,
	})
	return created, nil
}

// ScheduleDailyBatch finds every session starting between 24 and 25
// hours out (a sliding one-hour window, run once per hour) and
// schedules its 24-hour reminders. Errors are logged, never returned.
func (s *Scheduler) ScheduleDailyBatch(ctx context.Context) int {
	started := time.Now()
	metrics.ReminderScansTotal.WithLabelValues("daily").Inc()

	query := `SELECT session_id FROM study_sessions
		WHERE start_time >= NOW() + INTERVAL '24 hours'
		  AND start_time < NOW() + INTERVAL '25 hours'
		  AND status IN ('scheduled', 'upcoming')
		ORDER BY start_time`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		metrics.ReminderScanFailures.WithLabelValues("daily").Inc()
		s.recordJob(ctx, "daily-batch", "failed", started)
		s.logger.WithError(err).Error("daily batch query failed", nil)
		return 0
	}
	defer rows.Close()

	sessionIDs := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			metrics.ReminderScanFailures.WithLabelValues("daily").Inc()
			s.recordJob(ctx, "daily-batch", "failed", started)
			s.logger.WithError(err).Error("daily batch row read failed", nil)
			return 0
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err := rows.Err(); err != nil {
		metrics.ReminderScanFailures.WithLabelValues("daily").Inc()
		s.recordJob(ctx, "daily-batch", "failed", started)
		s.logger.WithError(err).Error("daily batch rows failed", nil)
		return 0
	}

	total := 0
	for _, sessionID := range sessionIDs {
		created, err := s.ScheduleTwentyFourHour(ctx, sessionID)
		if err != nil {
			s.logger.WithError(err).Error("24h scheduling failed for session", map[string]interface{}{
				"sessionId": sessionID,
			})
			continue
		}
		total += created
	}

	s.recordJob(ctx, "daily-batch", "completed", started)
	s.logger.Info("daily reminder batch finished", map[string]interface{}{
		"sessions": len(sessionIDs),
		"created":  total,
	})
	return total
}

// NotifyCancelled informs everyone who was attending, attended, or
// pending that the session was cancelled. A cancellation is a one-time
// event, so no de-duplication window applies; per-recipient failures
// are isolated.
func (s *Scheduler) NotifyCancelled(ctx context.Context, sessionID int64, cancelledBy string) (int, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	attendees, err := s.loadAttendees(ctx, sessionID, []string{
		models.AttendanceAttending, models.AttendanceAttended, models.AttendancePending,
	})
	if err != nil {
		return 0, err
	}

	metadata := map[string]interface{}{
		"session_id": session.ID,
		"group_id":   session.GroupID,
	}
	if cancelledBy != "" {
		metadata["cancelled_by"] = cancelledBy
	}

	created := 0
	for _, userID := range attendees {
		_, err := s.creator.Create(ctx, store.CreateParams{
			UserID:   userID,
			Type:     models.TypeSystem,
			Title:    "Study session cancelled",
			Message:  fmt.Sprintf("%s scheduled for %s has been cancelled.", session.Title, session.StartTime.Format(time.RFC1123)),
			Metadata: metadata,
			Source:   "scheduler",
		})
		if err != nil {
			s.logger.WithError(err).Error("cancellation notice failed", map[string]interface{}{
				"sessionId": sessionID,
				"userId":    userID,
			})
			continue
		}
		created++
	}

	s.logger.Info("cancellation notices sent", map[string]interface{}{
		"sessionId": sessionID,
		"created":   created,
	})
	return created, nil
}

func (s *Scheduler) createReminder(ctx context.Context, c reminderCandidate, scheduledFor time.Time, kind string) error {
	_, err := s.creator.Create(ctx, store.CreateParams{
		UserID:  c.UserID,
		Type:    models.TypeSessionReminder,
		Title:   "Study session reminder",
		Message: fmt.Sprintf("%s starts at %s.", c.Title, c.StartTime.Format(time.RFC1123)),
		Metadata: map[string]interface{}{
			"session_id": c.SessionID,
			"group_id":   c.GroupID,
			"start_time": c.StartTime.UTC().Format(time.RFC3339),
		},
		ScheduledFor: &scheduledFor,
		Source:       "scheduler",
	})
	if err != nil {
		s.logger.WithError(err).Error(kind+" creation failed", map[string]interface{}{
			"sessionId": c.SessionID,
			"userId":    c.UserID,
		})
		return err
	}

	metrics.RemindersCreated.Inc()
	return nil
}

func (s *Scheduler) loadSession(ctx context.Context, sessionID int64) (*models.StudySession, error) {
	query := `SELECT session_id, group_id, title, start_time, status, created_by
		FROM study_sessions WHERE session_id = $1`

	var session models.StudySession
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.GroupID, &session.Title,
		&session.StartTime, &session.Status, &session.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sessionID, err)
	}
	return &session, nil
}

func (s *Scheduler) loadAttendees(ctx context.Context, sessionID int64, statuses []string) ([]string, error) {
	query := `SELECT user_id FROM session_attendees
		WHERE session_id = $1 AND attendance_status = ANY($2)
		ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, sessionID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("load attendees for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	userIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

func (s *Scheduler) recordJob(ctx context.Context, job, status string, started time.Time) {
	if s.obs == nil {
		return
	}
	s.obs.RecordJobProcessed(ctx, job, status)
	s.obs.RecordJobDuration(ctx, job, time.Since(started))
}

func collectCandidates(rows *sql.Rows) ([]reminderCandidate, error) {
	out := []reminderCandidate{}
	for rows.Next() {
		var c reminderCandidate
		if err := rows.Scan(&c.SessionID, &c.GroupID, &c.Title, &c.StartTime, &c.UserID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
