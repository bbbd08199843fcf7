// internal/store/counts.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/common/metrics"
	"studybuddy-backend/internal/models"
)

// CountsCache keeps per-user unread aggregates in Redis under a short
// TTL. It is purely an accelerator: any failure falls back to SQL and
// is logged by the caller, never surfaced to the client.
type CountsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCountsCache creates a cache with the given expiry.
func NewCountsCache(rdb *redis.Client, ttl time.Duration) *CountsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CountsCache{rdb: rdb, ttl: ttl}
}

func countsKey(userID string) string {
	return fmt.Sprintf("notif:counts:%s", userID)
}

// Get returns the cached aggregate, or nil on a miss.
func (c *CountsCache) Get(ctx context.Context, userID string) (*models.NotificationCounts, error) {
	raw, err := c.rdb.Get(ctx, countsKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var counts models.NotificationCounts
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		// Stale or corrupt entry: treat as a miss.
		return nil, nil
	}
	return &counts, nil
}

// Set stores the aggregate under the cache TTL.
func (c *CountsCache) Set(ctx context.Context, userID string, counts *models.NotificationCounts) error {
	b, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, countsKey(userID), b, c.ttl).Err()
}

// Invalidate drops the cached aggregate for userID.
func (c *CountsCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, countsKey(userID)).Err()
}

// Counts returns the total, unread, and per-type unread aggregates for
// userID, consulting the cache first when one is configured.
func (s *Store) Counts(ctx context.Context, userID string) (*models.NotificationCounts, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			metrics.CountsCacheHits.WithLabelValues("error").Inc()
			s.logger.WithError(err).Warn("counts cache read failed", map[string]interface{}{
				"userId": userID,
			})
		} else if cached != nil {
			metrics.CountsCacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		} else {
			metrics.CountsCacheHits.WithLabelValues("miss").Inc()
		}
	}

	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE is_read = FALSE) AS unread,
		COUNT(*) FILTER (WHERE is_read = FALSE AND notification_type = 'session_reminder') AS unread_reminders,
		COUNT(*) FILTER (WHERE is_read = FALSE AND notification_type = 'group_invite') AS unread_invites,
		COUNT(*) FILTER (WHERE is_read = FALSE AND notification_type = 'partner_match') AS unread_matches
		FROM notifications WHERE user_id = $1`

	var counts models.NotificationCounts
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&counts.Total, &counts.Unread,
		&counts.UnreadReminders, &counts.UnreadInvites, &counts.UnreadMatches,
	)
	if err != nil {
		return nil, apperrors.NewFetchFailedError("counts", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, &counts); err != nil {
			s.logger.WithError(err).Warn("counts cache write failed", map[string]interface{}{
				"userId": userID,
			})
		}
	}

	return &counts, nil
}
