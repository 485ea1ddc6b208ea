package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lib/pq"
)

type Code string

const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeForbidden   Code = "FORBIDDEN"
	CodeValidation  Code = "VALIDATION"
	CodeConflict    Code = "CONFLICT"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// Postgres error classes. 42P01 is undefined_table and 42883 is
// undefined_function: both mean a feature's backing objects are not
// provisioned, which callers treat as feature-unavailable rather than
// a hard failure. 23505 is unique_violation.
const (
	pgUndefinedTable    = "42P01"
	pgUndefinedFunction = "42883"
	pgUniqueViolation   = "23505"
)

// Classify maps a driver error onto an application error. Unknown errors
// come back as INTERNAL.
func Classify(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUndefinedTable, pgUndefinedFunction:
			return Wrap(CodeUnavailable, "feature not provisioned", err)
		case pgUniqueViolation:
			return Wrap(CodeConflict, "already exists", err)
		}
	}
	return Wrap(CodeInternal, "internal error", err)
}

// IsUnavailable reports whether err means the backing table or function for
// a feature does not exist.
func IsUnavailable(err error) bool {
	return Classify(err).Code == CodeUnavailable
}

func IsConflict(err error) bool {
	return Classify(err).Code == CodeConflict
}

type response struct {
	Error string `json:"error"`
	Code  Code   `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// HandleError writes err as a JSON error response. Non-application errors
// are logged and reported as a bare internal error.
func HandleError(w http.ResponseWriter, err error) {
	appErr := Classify(err)
	if appErr.Code == CodeInternal {
		slog.Error("internal error", "error", err)
	}
	WriteJSON(w, appErr.StatusCode(), response{Error: appErr.Message, Code: appErr.Code})
}
