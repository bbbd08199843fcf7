// internal/dispatcher/templates_test.go
package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studybuddy-backend/internal/models"
)

func TestRenderNotification_SessionReminder(t *testing.T) {
	n := &models.Notification{
		Type:    models.TypeSessionReminder,
		Title:   "Algebra review",
		Message: "Starts at 3pm.",
	}

	subject, body := renderNotification(n)

	assert.Equal(t, "Reminder: Algebra review", subject)
	assert.Contains(t, body, "Starts at 3pm.")
	assert.NotContains(t, body, "{{", "no unresolved placeholders in output")
}

func TestRenderNotification_UnknownTypeFallsBack(t *testing.T) {
	n := &models.Notification{
		Type:    "something_new",
		Title:   "Raw title",
		Message: "Raw message",
	}

	subject, body := renderNotification(n)

	assert.Equal(t, "Raw title", subject)
	assert.Equal(t, "Raw message", body)
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]interface{}
		want string
	}{
		{
			name: "string value",
			tmpl: "Hello {{name}}",
			data: map[string]interface{}{"name": "Ada"},
			want: "Hello Ada",
		},
		{
			name: "numeric metadata value",
			tmpl: "Session {{session_id}}",
			data: map[string]interface{}{"session_id": float64(12)},
			want: "Session 12",
		},
		{
			name: "unresolved placeholder stripped",
			tmpl: "Before {{missing}} after",
			data: map[string]interface{}{},
			want: "Before  after",
		},
		{
			name: "nil value renders empty",
			tmpl: "x{{v}}y",
			data: map[string]interface{}{"v": nil},
			want: "xy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tt.tmpl, tt.data))
		})
	}
}
