// internal/store/store.go

// Package store implements durable CRUD over the notifications table.
// Every mutation is a single auto-committing statement; ownership is
// enforced in WHERE clauses so a wrong id and a wrong owner are
// indistinguishable to callers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/metrics"
	"studybuddy-backend/internal/events"
	"studybuddy-backend/internal/models"
)

// notificationColumns is the select list shared by every read path.
const notificationColumns = `notification_id, user_id, notification_type, title, message, metadata, scheduled_for, sent_at, is_read, created_at`

// Store is the notification record store. The bus and cache are
// optional; a nil bus skips event publication and a nil cache skips
// counts caching.
type Store struct {
	db     *sql.DB
	bus    *events.Bus
	cache  *CountsCache
	logger logger.Logger
}

// New creates a Store over an established database handle.
func New(db *sql.DB, bus *events.Bus, cache *CountsCache, log logger.Logger) *Store {
	return &Store{
		db:     db,
		bus:    bus,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "notification-store"}),
	}
}

// CreateParams are the inputs to Create. Metadata nil is stored as SQL
// NULL; ScheduledFor nil means deliver immediately.
type CreateParams struct {
	UserID       string
	Type         string
	Title        string
	Message      string
	Metadata     map[string]interface{}
	ScheduledFor *time.Time

	// Source labels the created metric: "api", "scheduler", "group-notify".
	Source string
}

// Create inserts one notification row and returns it with the
// store-assigned id and created_at. The created event is published
// after the insert returns; a failing subscriber cannot undo the write.
func (s *Store) Create(ctx context.Context, p CreateParams) (*models.Notification, error) {
	if !models.IsValidNotificationType(p.Type) {
		return nil, apperrors.NewInvalidNotificationTypeError(p.Type)
	}

	metadataValue, err := serializeMetadata(p.Metadata)
	if err != nil {
		return nil, apperrors.NewValidationError("metadata is not serializable")
	}

	var scheduledFor sql.NullTime
	if p.ScheduledFor != nil {
		scheduledFor = sql.NullTime{Time: p.ScheduledFor.UTC(), Valid: true}
	}

	n := models.Notification{
		UserID:       p.UserID,
		Type:         p.Type,
		Title:        p.Title,
		Message:      p.Message,
		Metadata:     p.Metadata,
		ScheduledFor: p.ScheduledFor,
	}

	query := `INSERT INTO notifications (user_id, notification_type, title, message, metadata, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING notification_id, created_at`

	err = s.db.QueryRowContext(ctx, query,
		p.UserID, p.Type, p.Title, p.Message, metadataValue, scheduledFor,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("create", err)
	}

	source := p.Source
	if source == "" {
		source = "api"
	}
	metrics.NotificationsCreated.WithLabelValues(p.Type, source).Inc()

	s.invalidateCounts(ctx, p.UserID)
	s.publish(events.TypeNotificationCreated, n)

	return &n, nil
}

// MarkRead sets is_read for one row owned by userID and returns the
// updated row. A missing row and a row owned by someone else both
// produce NotFound.
func (s *Store) MarkRead(ctx context.Context, userID string, notificationID int64) (*models.Notification, error) {
	query := `UPDATE notifications SET is_read = TRUE
		WHERE notification_id = $1 AND user_id = $2
		RETURNING ` + notificationColumns

	row := s.db.QueryRowContext(ctx, query, notificationID, userID)
	n, err := scanNotificationRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("Notification")
		}
		return nil, apperrors.NewQueryExecutionFailedError("mark-read", err)
	}

	s.invalidateCounts(ctx, userID)
	s.publish(events.TypeNotificationRead, *n)

	return n, nil
}

// MarkAllRead marks every unread row owned by userID and returns the
// count affected. Zero is a valid, non-error result.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark-all-read", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark-all-read", err)
	}

	if affected > 0 {
		s.invalidateCounts(ctx, userID)
	}
	return affected, nil
}

// Delete removes one row owned by userID. Zero rows affected is NotFound.
func (s *Store) Delete(ctx context.Context, userID string, notificationID int64) error {
	query := `DELETE FROM notifications WHERE notification_id = $1 AND user_id = $2`

	res, err := s.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("Notification")
	}

	s.invalidateCounts(ctx, userID)
	return nil
}

// ListPending returns every dispatchable row: scheduled, due, and not
// yet sent, oldest schedule first. There is no user scoping; the route
// serving this is gated by the service credential, not end-user auth.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE scheduled_for IS NOT NULL AND scheduled_for <= NOW() AND sent_at IS NULL
		ORDER BY scheduled_for ASC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewFetchFailedError("list-pending", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// MarkSent stamps sent_at on the given ids in one statement. Unknown
// ids are silently ignored and an already-sent row is never restamped.
func (s *Store) MarkSent(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `UPDATE notifications SET sent_at = NOW()
		WHERE notification_id = ANY($1) AND sent_at IS NULL`

	res, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark-sent", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark-sent", err)
	}

	metrics.NotificationsMarkedSent.Add(float64(affected))
	return affected, nil
}

// publish emits ev best-effort; the bus isolates subscriber panics.
func (s *Store) publish(t events.Type, n models.Notification) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: t, Notification: n})
}

func (s *Store) invalidateCounts(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WithError(err).Warn("counts cache invalidation failed", map[string]interface{}{
			"userId": userID,
		})
	}
}

func serializeMetadata(m map[string]interface{}) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// deserializeMetadata turns the stored text back into a map. Malformed
// stored metadata yields nil rather than failing the whole list.
func deserializeMetadata(raw sql.NullString) map[string]interface{} {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotificationRow(row rowScanner) (*models.Notification, error) {
	var (
		n            models.Notification
		metadata     sql.NullString
		scheduledFor sql.NullTime
		sentAt       sql.NullTime
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&metadata, &scheduledFor, &sentAt, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Metadata = deserializeMetadata(metadata)
	if scheduledFor.Valid {
		t := scheduledFor.Time
		n.ScheduledFor = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return &n, nil
}

func collectNotifications(rows *sql.Rows) ([]models.Notification, error) {
	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, apperrors.NewFetchFailedError("scan", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewFetchFailedError("rows", err)
	}
	return out, nil
}
