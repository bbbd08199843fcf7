// internal/store/counts_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/models"
)

func newCachedTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCountsCache(rdb, 30*time.Second)
	st := New(db, nil, cache, logger.NewTestLogger(t))
	return st, mock, mr
}

func expectCountsQuery(mock sqlmock.Sqlmock, userID string, counts models.NotificationCounts) {
	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"total", "unread", "unread_reminders", "unread_invites", "unread_matches",
		}).AddRow(counts.Total, counts.Unread, counts.UnreadReminders, counts.UnreadInvites, counts.UnreadMatches))
}

func TestStore_Counts_MissThenHit(t *testing.T) {
	st, mock, _ := newCachedTestStore(t)

	want := models.NotificationCounts{Total: 10, Unread: 3, UnreadReminders: 2, UnreadInvites: 1}
	expectCountsQuery(mock, "user-1", want)

	// First call misses the cache and hits SQL.
	got, err := st.Counts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Second call is served from the cache; no further query expected.
	got, err = st.Counts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Counts_CorruptCacheEntryFallsBackToSQL(t *testing.T) {
	st, mock, mr := newCachedTestStore(t)

	require.NoError(t, mr.Set("notif:counts:user-1", "{not json"))

	want := models.NotificationCounts{Total: 2, Unread: 1}
	expectCountsQuery(mock, "user-1", want)

	got, err := st.Counts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Counts_InvalidatedOnWrite(t *testing.T) {
	st, mock, mr := newCachedTestStore(t)

	cached, err := json.Marshal(models.NotificationCounts{Total: 5, Unread: 5})
	require.NoError(t, err)
	require.NoError(t, mr.Set("notif:counts:user-1", string(cached)))

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 5))

	_, err = st.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, mr.Exists("notif:counts:user-1"), "write must drop the cached aggregate")
}

func TestStore_Counts_RedisDownFallsBackToSQL(t *testing.T) {
	st, mock, mr := newCachedTestStore(t)
	mr.Close()

	want := models.NotificationCounts{Total: 1}
	expectCountsQuery(mock, "user-1", want)

	got, err := st.Counts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, *got, "cache failure is invisible to the caller")
}
