// internal/dispatcher/templates.go
package dispatcher

import (
	"fmt"
	"strings"

	"studybuddy-backend/internal/models"
)

// Per-type delivery templates. Placeholders resolve from the
// notification's own fields plus its metadata; unresolved placeholders
// are stripped rather than sent to the recipient.
var deliveryTemplates = map[string]struct {
	subject string
	body    string
}{
	models.TypeSessionReminder: {
		subject: "Reminder: {{title}}",
		body:    "{{message}}\n\nSee your study group page for details.",
	},
	models.TypeGroupInvite: {
		subject: "Study group invitation: {{title}}",
		body:    "{{message}}",
	},
	models.TypePartnerMatch: {
		subject: "New study partner match",
		body:    "{{message}}",
	},
	models.TypeProgressUpdate: {
		subject: "Progress update: {{title}}",
		body:    "{{message}}",
	},
	models.TypeMessage: {
		subject: "{{title}}",
		body:    "{{message}}",
	},
	models.TypeSystem: {
		subject: "{{title}}",
		body:    "{{message}}",
	},
}

// renderNotification produces the delivery subject and body for one row.
func renderNotification(n *models.Notification) (string, string) {
	tmpl, ok := deliveryTemplates[n.Type]
	if !ok {
		return n.Title, n.Message
	}

	data := map[string]interface{}{
		"title":   n.Title,
		"message": n.Message,
		"user_id": n.UserID,
	}
	for k, v := range n.Metadata {
		data[k] = v
	}

	return renderTemplate(tmpl.subject, data), renderTemplate(tmpl.body, data)
}

// renderTemplate replaces {{placeholder}} tokens from data and strips
// any that remain unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
