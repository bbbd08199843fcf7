// internal/store/groups.go
package store

import (
	"context"
	"database/sql"
	"strconv"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/models"
)

// GetGroup loads one study group by id.
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*models.StudyGroup, error) {
	query := `SELECT group_id, name, creator_id FROM study_groups WHERE group_id = $1`

	var g models.StudyGroup
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(&g.ID, &g.Name, &g.CreatorID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewGroupNotFoundError(itoa(groupID))
	}
	if err != nil {
		return nil, apperrors.NewFetchFailedError("get-group", err)
	}
	return &g, nil
}

// IsGroupAdmin reports whether userID is the group's creator or an
// active admin member.
func (s *Store) IsGroupAdmin(ctx context.Context, groupID int64, userID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM study_groups g WHERE g.group_id = $1 AND g.creator_id = $2
		UNION
		SELECT 1 FROM group_members m
		WHERE m.group_id = $1 AND m.user_id = $2 AND m.role = 'admin' AND m.status = 'active'
	)`

	var isAdmin bool
	if err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(&isAdmin); err != nil {
		return false, apperrors.NewFetchFailedError("is-group-admin", err)
	}
	return isAdmin, nil
}

// ListActiveMemberIDs returns the user ids of the group's active
// members, excluding excludeUserID (the sender of a fan-out).
func (s *Store) ListActiveMemberIDs(ctx context.Context, groupID int64, excludeUserID string) ([]string, error) {
	query := `SELECT user_id FROM group_members
		WHERE group_id = $1 AND status = 'active' AND user_id <> $2
		ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, groupID, excludeUserID)
	if err != nil {
		return nil, apperrors.NewFetchFailedError("list-members", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewFetchFailedError("list-members", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewFetchFailedError("list-members", err)
	}
	return ids, nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
