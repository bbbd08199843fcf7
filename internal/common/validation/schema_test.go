// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateJSON_CreateNotification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid body",
			body: `{"user_id": "u1", "notification_type": "message", "title": "t", "message": "m"}`,
		},
		{
			name: "integer user_id accepted",
			body: `{"user_id": 42, "notification_type": "message", "title": "t", "message": "m"}`,
		},
		{
			name:    "missing title",
			body:    `{"user_id": "u1", "notification_type": "message", "message": "m"}`,
			wantErr: true,
		},
		{
			name:    "empty message",
			body:    `{"user_id": "u1", "notification_type": "message", "title": "t", "message": ""}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			body:    `{nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON(CreateNotificationSchema, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateJSON_MarkSent(t *testing.T) {
	assert.NoError(t, ValidateJSON(MarkSentSchema, []byte(`{"notification_ids": [1, "abc", null]}`)),
		"entry types are filtered later, not rejected here")
	assert.Error(t, ValidateJSON(MarkSentSchema, []byte(`{"notification_ids": "1,2"}`)))
	assert.Error(t, ValidateJSON(MarkSentSchema, []byte(`{}`)))
}

func TestValidateJSON_GroupNotify(t *testing.T) {
	assert.NoError(t, ValidateJSON(GroupNotifySchema, []byte(`{"title": "t", "message": "m"}`)))
	assert.Error(t, ValidateJSON(GroupNotifySchema, []byte(`{"title": "t"}`)))
}
