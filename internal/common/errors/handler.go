// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"

	"studybuddy-backend/internal/common/logger"
)

// HTTPStatus maps an error to its response status: validation errors
// are 400, not-found 404, forbidden 403, everything else 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsForbidden(err):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the message safe to echo to a caller. Store
// errors carry connection strings and SQL text in Details, so a 500
// always gets the generic message.
func clientMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	if se := AsStandard(err); se != nil {
		return se.Message
	}
	return err.Error()
}

// WriteHTTP logs err server-side and writes the JSON {"error": ...}
// body every failure path returns.
func WriteHTTP(w http.ResponseWriter, log logger.Logger, err error) {
	status := HTTPStatus(err)

	fields := map[string]interface{}{"status": status}
	if se := AsStandard(err); se != nil {
		fields["code"] = se.Code
		if se.Details != "" {
			fields["details"] = se.Details
		}
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed", fields)
	} else {
		log.WithError(err).Warn("request rejected", fields)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": clientMessage(err, status)})
}
