// internal/common/errors/errors.go

// Package errors provides standardized error handling for the
// notification service. Store and scheduler code returns typed errors
// from this package; the HTTP layer translates them to status codes
// without leaking internals.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidNotification ErrorCode = "INVALID_NOTIFICATION_TYPE"
	ErrCodeInvalidIDList       ErrorCode = "INVALID_ID_LIST"

	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeGroupNotFound ErrorCode = "GROUP_NOT_FOUND"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeFetchFailed              ErrorCode = "FETCH_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable client-input error.
func NewValidationError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidNotificationTypeError creates a non-retryable error for an
// unknown notification type.
func NewInvalidNotificationTypeError(notificationType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotification,
		Message:   "Invalid notification type",
		Details:   fmt.Sprintf("notificationType: %s", notificationType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidIDListError creates a non-retryable error for a mark-sent
// request whose id list contains no usable ids.
func NewInvalidIDListError() *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidIDList,
		Message:   "notification_ids must contain at least one valid id",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not-found error. Ownership
// mismatches use the same error so callers cannot probe other users'
// notifications.
func NewNotFoundError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGroupNotFoundError creates a non-retryable error for a missing group.
func NewGroupNotFoundError(groupID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGroupNotFound,
		Message:   "Group not found",
		Details:   fmt.Sprintf("groupId: %s", groupID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable authorization error.
func NewForbiddenError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable store-write error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError creates a retryable read-query error.
func NewFetchFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Failed to fetch notifications",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// AsStandard extracts a *StandardError from an error chain, or nil.
func AsStandard(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsNotFound reports whether err is a not-found class error.
func IsNotFound(err error) bool {
	se := AsStandard(err)
	return se != nil && (se.Code == ErrCodeNotFound || se.Code == ErrCodeGroupNotFound)
}

// IsValidation reports whether err is a client-input class error.
func IsValidation(err error) bool {
	se := AsStandard(err)
	return se != nil && (se.Code == ErrCodeValidationFailed ||
		se.Code == ErrCodeInvalidNotification ||
		se.Code == ErrCodeInvalidIDList)
}

// IsForbidden reports whether err is an authorization error.
func IsForbidden(err error) bool {
	se := AsStandard(err)
	return se != nil && se.Code == ErrCodeForbidden
}
