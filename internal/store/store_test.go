// internal/store/store_test.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/events"
	"studybuddy-backend/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *events.Bus) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(logger.NewNoOpLogger())
	st := New(db, bus, nil, logger.NewTestLogger(t))
	return st, mock, bus
}

func notificationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"notification_id", "user_id", "notification_type", "title", "message",
		"metadata", "scheduled_for", "sent_at", "is_read", "created_at",
	})
}

// ==========================
// Create
// ==========================

func TestStore_Create_Success(t *testing.T) {
	st, mock, bus := newTestStore(t)

	var published []events.Event
	bus.Subscribe(func(ev events.Event) { published = append(published, ev) })

	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("user-1", models.TypeGroupInvite, "Join us", "You are invited",
			`{"group_id":7}`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"notification_id", "created_at"}).
			AddRow(int64(101), createdAt))

	n, err := st.Create(context.Background(), CreateParams{
		UserID:   "user-1",
		Type:     models.TypeGroupInvite,
		Title:    "Join us",
		Message:  "You are invited",
		Metadata: map[string]interface{}{"group_id": 7},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(101), n.ID)
	assert.Equal(t, createdAt, n.CreatedAt)
	assert.Equal(t, map[string]interface{}{"group_id": 7}, n.Metadata)
	assert.False(t, n.IsRead)

	require.Len(t, published, 1)
	assert.Equal(t, events.TypeNotificationCreated, published[0].Type)
	assert.Equal(t, int64(101), published[0].Notification.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_NilMetadataStoredAsNull(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("user-1", models.TypeMessage, "Hi", "Body", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"notification_id", "created_at"}).
			AddRow(int64(5), time.Now()))

	n, err := st.Create(context.Background(), CreateParams{
		UserID:  "user-1",
		Type:    models.TypeMessage,
		Title:   "Hi",
		Message: "Body",
	})

	require.NoError(t, err)
	assert.Nil(t, n.Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_InvalidTypeRejectedBeforeQuery(t *testing.T) {
	st, mock, bus := newTestStore(t)

	published := 0
	bus.Subscribe(func(events.Event) { published++ })

	_, err := st.Create(context.Background(), CreateParams{
		UserID:  "user-1",
		Type:    "bogus_type",
		Title:   "x",
		Message: "y",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, published, "no event for a rejected create")
	assert.NoError(t, mock.ExpectationsWereMet(), "no query must run")
}

func TestStore_Create_QueryFailure(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnError(errors.New("connection reset"))

	_, err := st.Create(context.Background(), CreateParams{
		UserID:  "user-1",
		Type:    models.TypeSystem,
		Title:   "x",
		Message: "y",
	})

	require.Error(t, err)
	se := apperrors.AsStandard(err)
	require.NotNil(t, se)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, se.Code)
	assert.True(t, se.Retryable)
}

// ==========================
// MarkRead / MarkAllRead
// ==========================

func TestStore_MarkRead_Success(t *testing.T) {
	st, mock, bus := newTestStore(t)

	var published []events.Event
	bus.Subscribe(func(ev events.Event) { published = append(published, ev) })

	mock.ExpectQuery(`UPDATE notifications SET is_read = TRUE`).
		WithArgs(int64(9), "user-1").
		WillReturnRows(notificationRows().AddRow(
			int64(9), "user-1", models.TypeMessage, "Hi", "Body",
			nil, nil, nil, true, time.Now(),
		))

	n, err := st.MarkRead(context.Background(), "user-1", 9)

	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeNotificationRead, published[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkRead_WrongOwnerIsNotFound(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectQuery(`UPDATE notifications SET is_read = TRUE`).
		WithArgs(int64(9), "someone-else").
		WillReturnError(sql.ErrNoRows)

	_, err := st.MarkRead(context.Background(), "someone-else", 9)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_MarkAllRead_SecondCallAffectsZero(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := st.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)

	affected, err = st.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected, "second pass is a valid no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Delete
// ==========================

func TestStore_Delete_Success(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs(int64(3), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.Delete(context.Background(), "user-1", 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete_MissingRowIsNotFound(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs(int64(3), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.Delete(context.Background(), "user-1", 3)
	assert.True(t, apperrors.IsNotFound(err))
}

// ==========================
// Pending queue
// ==========================

func TestStore_ListPending(t *testing.T) {
	st, mock, _ := newTestStore(t)

	due := time.Now().Add(-time.Minute)
	mock.ExpectQuery(`scheduled_for IS NOT NULL AND scheduled_for <= NOW\(\) AND sent_at IS NULL`).
		WithArgs(100).
		WillReturnRows(notificationRows().
			AddRow(int64(1), "user-1", models.TypeSessionReminder, "Reminder", "Soon",
				`{"session_id":12}`, due, nil, false, time.Now()).
			AddRow(int64(2), "user-2", models.TypeSessionReminder, "Reminder", "Soon",
				nil, due, nil, false, time.Now()))

	pending, err := st.ListPending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, float64(12), pending[0].Metadata["session_id"])
	assert.NotNil(t, pending[0].ScheduledFor)
	assert.Nil(t, pending[0].SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListPending_MalformedMetadataYieldsNil(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectQuery(`sent_at IS NULL`).
		WithArgs(50).
		WillReturnRows(notificationRows().
			AddRow(int64(1), "user-1", models.TypeSystem, "t", "m",
				`{not json`, time.Now(), nil, false, time.Now()))

	pending, err := st.ListPending(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].Metadata, "bad stored metadata must not fail the list")
}

func TestStore_MarkSent(t *testing.T) {
	st, mock, _ := newTestStore(t)

	mock.ExpectExec(`UPDATE notifications SET sent_at = NOW\(\)`).
		WithArgs(pq.Array([]int64{1, 2, 99})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := st.MarkSent(context.Background(), []int64{1, 2, 99})

	require.NoError(t, err)
	assert.Equal(t, int64(2), affected, "unknown and already-sent ids are skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkSent_EmptyListIsNoOp(t *testing.T) {
	st, mock, _ := newTestStore(t)

	affected, err := st.MarkSent(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query must run")
}
