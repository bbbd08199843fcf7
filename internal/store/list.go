// internal/store/list.go
package store

import (
	"context"
	"fmt"
	"strings"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOptions maps the enumerated set of optional list filters to
// bound parameters. Values never reach the SQL text; only the fixed
// clause fragments below are concatenated.
type ListOptions struct {
	UnreadOnly bool
	Type       string
	Limit      int
	Offset     int
}

// buildWhere returns the WHERE clause and its bound arguments for the
// calling user plus any active filters.
func (o ListOptions) buildWhere(userID string) (string, []interface{}) {
	clauses := []string{"user_id = $1"}
	args := []interface{}{userID}

	if o.UnreadOnly {
		clauses = append(clauses, "is_read = FALSE")
	}
	if o.Type != "" {
		args = append(args, o.Type)
		clauses = append(clauses, fmt.Sprintf("notification_type = $%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// List returns userID's notifications newest first, paginated by
// Limit/Offset. A type filter outside the enumerated set is a
// validation error rather than an empty result, so typos surface.
func (s *Store) List(ctx context.Context, userID string, opts ListOptions) ([]models.Notification, error) {
	if opts.Type != "" && !models.IsValidNotificationType(opts.Type) {
		return nil, apperrors.NewInvalidNotificationTypeError(opts.Type)
	}
	opts = opts.normalize()

	where, args := opts.buildWhere(userID)
	args = append(args, opts.Limit, opts.Offset)

	query := fmt.Sprintf(
		`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, where, len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewFetchFailedError("list", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}
