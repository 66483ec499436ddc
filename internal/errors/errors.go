// Package errors provides structured error types for backlogd.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for backlogd.
const (
	// Lookup errors
	CodeBacklogNotFound Code = "BACKLOG_NOT_FOUND"
	CodeStatusNotFound  Code = "STATUS_NOT_FOUND"
	CodeTaskNotFound    Code = "TASK_NOT_FOUND"

	// Input errors
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// Workflow errors
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeOrderConflict      Code = "ORDER_CONFLICT"

	// Persistence errors
	CodeTransactionFailed Code = "TRANSACTION_FAILED"
	CodeInternal          Code = "INTERNAL"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryUnprocessable
	CategoryConflict
	CategoryInternal
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeBacklogNotFound:    CategoryNotFound,
	CodeStatusNotFound:     CategoryNotFound,
	CodeTaskNotFound:       CategoryNotFound,
	CodeValidationFailed:   CategoryBadRequest,
	CodeInvariantViolation: CategoryUnprocessable,
	CodeOrderConflict:      CategoryConflict,
	CodeTransactionFailed:  CategoryInternal,
	CodeInternal:           CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryUnprocessable:
		return 422
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// CoreError is the structured error type for backlogd.
type CoreError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *CoreError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *CoreError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *CoreError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *CoreError) MarshalJSON() ([]byte, error) {
	type alias CoreError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *CoreError) WithCause(err error) *CoreError {
	return &CoreError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// AsCore reports whether err (or anything it wraps) is a CoreError,
// assigning it to target on success.
func AsCore(err error, target **CoreError) bool {
	return errors.As(err, target)
}

// --- Error constructors ---

// ErrBacklogNotFound returns an error when a backlog doesn't exist.
func ErrBacklogNotFound(id string) *CoreError {
	return &CoreError{
		Code: CodeBacklogNotFound,
		What: fmt.Sprintf("backlog %s not found", id),
		Why:  "No backlog with this ID exists, or it has been deleted",
		Fix:  "Run 'backlogd backlog list' to see available backlogs",
	}
}

// ErrStatusNotFound returns an error when a status doesn't exist.
func ErrStatusNotFound(id int64) *CoreError {
	return &CoreError{
		Code: CodeStatusNotFound,
		What: fmt.Sprintf("status %d not found", id),
		Why:  "No status with this ID exists in the backlog",
		Fix:  "Run 'backlogd status list' to see the backlog's statuses",
	}
}

// ErrNoStatusAtPosition returns an error when no status occupies the
// requested position in a backlog.
func ErrNoStatusAtPosition(backlogID string, position int) *CoreError {
	return &CoreError{
		Code: CodeStatusNotFound,
		What: fmt.Sprintf("no status at position %d in backlog %s", position, backlogID),
		Why:  "The reorder target position is not occupied",
	}
}

// ErrTaskNotFound returns an error when a task doesn't exist.
func ErrTaskNotFound(id int64) *CoreError {
	return &CoreError{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %d not found", id),
		Why:  "No task with this ID exists",
	}
}

// ErrValidation returns an error for invalid input at the boundary.
func ErrValidation(what, why string) *CoreError {
	return &CoreError{
		Code: CodeValidationFailed,
		What: what,
		Why:  why,
	}
}

// ErrInvariant returns an error for a workflow invariant violation.
func ErrInvariant(what, why string) *CoreError {
	return &CoreError{
		Code: CodeInvariantViolation,
		What: what,
		Why:  why,
	}
}

// ErrOrderConflict returns an error when a reorder target is invalid.
func ErrOrderConflict(what, why string) *CoreError {
	return &CoreError{
		Code: CodeOrderConflict,
		What: what,
		Why:  why,
	}
}

// ErrTransactionFailed returns an error when a transaction rolled back.
func ErrTransactionFailed(cause error) *CoreError {
	return &CoreError{
		Code:  CodeTransactionFailed,
		What:  "transaction failed and was rolled back",
		Why:   "A write inside the transaction returned an error; no changes were applied",
		Cause: cause,
	}
}

// ErrInternal returns an error for an unexpected internal condition.
func ErrInternal(what string, cause error) *CoreError {
	return &CoreError{
		Code:  CodeInternal,
		What:  what,
		Cause: cause,
	}
}
