// internal/common/validation/schema.go

// Package validation checks request bodies against JSON schemas before
// any handler logic runs. Enumerated-type checks stay in the store so
// internal callers get the same guarantee.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CreateNotificationSchema validates POST / bodies.
const CreateNotificationSchema = `{
	"type": "object",
	"required": ["user_id", "notification_type", "title", "message"],
	"properties": {
		"user_id": {"type": ["string", "integer"], "minLength": 1},
		"notification_type": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"message": {"type": "string", "minLength": 1},
		"metadata": {"type": ["object", "null"]},
		"scheduled_for": {"type": ["string", "null"]}
	}
}`

// GroupNotifySchema validates POST /group/{groupId}/notify bodies.
const GroupNotifySchema = `{
	"type": "object",
	"required": ["title", "message"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"message": {"type": "string", "minLength": 1},
		"notification_type": {"type": "string"},
		"metadata": {"type": ["object", "null"]}
	}
}`

// MarkSentSchema validates PUT /mark-sent bodies. Entry types are
// deliberately loose: non-numeric entries are filtered out later, not
// rejected as a whole-request error.
const MarkSentSchema = `{
	"type": "object",
	"required": ["notification_ids"],
	"properties": {
		"notification_ids": {"type": "array"}
	}
}`

// ValidateJSON checks body against schema and returns a single
// human-readable message listing every violation.
func ValidateJSON(schema string, body []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
