package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies a service failure so callers can branch on it
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindValidation
	KindAuthorization
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// ServiceError is the error type returned by every core operation
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NotFound builds an error for a missing order, vendor or assignment
func NotFound(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation builds an error for malformed or missing input
func Validation(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds an error for a caller lacking the required capability
func Forbidden(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindAuthorization, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds an error for a uniqueness violation
func Conflict(code, message string, err error) *ServiceError {
	return &ServiceError{Kind: KindConflict, Code: code, Message: message, Err: err}
}

// Internal wraps an unexpected storage or infrastructure failure
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// KindOf returns the kind of err; errors that are not a ServiceError are internal
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsUniqueViolation reports whether err comes from a unique constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Drivers without error translation still say so in the message
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// wrapDBError converts a storage error into a ServiceError, mapping missing rows
// to NotFound and constraint violations to Conflict.
func wrapDBError(err error, notFound *ServiceError, conflictCode, message string) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if conflictCode != "" && IsUniqueViolation(err) {
		return Conflict(conflictCode, message, err)
	}
	return Internal(message, err)
}
