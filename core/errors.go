package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// StatusCoder is implemented by errors that know which HTTP status they map to.
type StatusCoder interface {
	StatusCode() int
}

// Titled is implemented by errors that carry a short human title.
type Titled interface {
	Title() string
}

// InvalidParameterError reports a malformed query parameter.
type InvalidParameterError struct {
	Field   string
	Message string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Message)
}

func (e *InvalidParameterError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidParameterError) Title() string   { return "Invalid parameter" }

// UnknownFieldError is returned when a filter or order names a column the
// model does not declare.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("model %q has no field %q", e.Model, e.Field)
}

func (e *UnknownFieldError) StatusCode() int { return http.StatusBadRequest }
func (e *UnknownFieldError) Title() string   { return "Unknown field" }

// ValidationError reports a request payload that does not match its schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" || e.Path == "(root)" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *ValidationError) Title() string   { return "Validation error" }

// AuthenticationError is returned when credentials are missing or wrong.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string   { return e.Message }
func (e *AuthenticationError) StatusCode() int { return http.StatusUnauthorized }
func (e *AuthenticationError) Title() string   { return "Authentication failed" }

// PermissionError is returned when the caller may not operate a resource.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string   { return e.Message }
func (e *PermissionError) StatusCode() int { return http.StatusForbidden }
func (e *PermissionError) Title() string   { return "Permission denied" }

// NotFoundError is returned when a single-record operation matched nothing.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s '%v' not found", e.Resource, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *NotFoundError) Title() string   { return "Resource not found" }

// StorageError wraps a driver error. Message holds a sanitized single line
// that is safe to return to clients.
type StorageError struct {
	Kind    string
	Message string
	Err     error
}

func (e *StorageError) Error() string   { return e.Kind + ": " + e.Message }
func (e *StorageError) Unwrap() error   { return e.Err }
func (e *StorageError) StatusCode() int { return http.StatusBadRequest }
func (e *StorageError) Title() string   { return e.Kind }

// NewStorageError classifies a driver error. Errors that are already typed by
// this package pass through unchanged.
func NewStorageError(err error) error {
	if err == nil {
		return nil
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return err
	}

	kind := "Database error"
	var liteErr sqlite3.Error
	var pqErr *pq.Error
	switch {
	case errors.As(err, &liteErr):
		if liteErr.Code == sqlite3.ErrConstraint {
			kind = "Database integrity error"
		} else {
			kind = "Database operational error"
		}
	case errors.As(err, &pqErr):
		if strings.HasPrefix(string(pqErr.Code), "23") {
			kind = "Database integrity error"
		} else {
			kind = "Database operational error"
		}
	}

	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return &StorageError{Kind: kind, Message: strings.TrimSpace(msg), Err: err}
}

// StatusCode maps an error to an HTTP status. Untyped errors are 500.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// ErrorTitle returns the title of a typed error or a generic one.
func ErrorTitle(err error) string {
	var t Titled
	if errors.As(err, &t) {
		return t.Title()
	}
	return "Internal server error"
}
