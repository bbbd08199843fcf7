// internal/common/workflow/client_test.go
package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() *TriggerPayload {
	return &TriggerPayload{
		NotificationID: 42,
		UserID:         "user-1",
		Type:           "session_reminder",
		Title:          "Study session reminder",
		Message:        "Starts soon",
		Metadata:       map[string]interface{}{"session_id": float64(12)},
		TriggeredAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

func TestClient_Trigger_Success(t *testing.T) {
	var received TriggerPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	err := client.Trigger(context.Background(), testPayload())

	require.NoError(t, err)
	assert.Equal(t, int64(42), received.NotificationID)
	assert.Equal(t, "session_reminder", received.Type)
	assert.Equal(t, float64(12), received.Metadata["session_id"])
}

func TestClient_Trigger_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "workflow broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	err := client.Trigger(context.Background(), testPayload())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Trigger_EndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := client.Trigger(context.Background(), testPayload())

	assert.Error(t, err)
}
