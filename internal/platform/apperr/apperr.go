// Package apperr defines the error kinds shared by the clinic engines and
// their mapping to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrOverpayment       = errors.New("overpayment rejected")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrSlotConflict      = errors.New("slot conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error carries a kind for errors.Is checks plus a caller-facing message.
type Error struct {
	Kind    error
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, field, format string, args ...interface{}) error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports a bad or missing field.
func Invalid(field, format string, args ...interface{}) error {
	return newError(ErrValidation, field, format, args...)
}

// Missing reports an empty required field.
func Missing(field string) error {
	return newError(ErrValidation, field, "%s is required", field)
}

func InvalidAmount(format string, args ...interface{}) error {
	return newError(ErrInvalidAmount, "amount", format, args...)
}

func Overpayment(format string, args ...interface{}) error {
	return newError(ErrOverpayment, "amount", format, args...)
}

// NotFound reports an id that does not resolve, e.g. NotFound("invoice").
func NotFound(entity string) error {
	return newError(ErrNotFound, "", "%s not found", entity)
}

func InvalidTimeFormat(value string) error {
	return newError(ErrInvalidTimeFormat, "time", "invalid time format %q, expected HH:MM", value)
}

// SkippedLocalTime reports a wall-clock time that a clock change skips on date.
func SkippedLocalTime(clock, date string) error {
	return newError(ErrInvalidTimeFormat, "time", "%s does not exist on %s because of a clock change", clock, date)
}

func SlotConflict(format string, args ...interface{}) error {
	return newError(ErrSlotConflict, "date_time", format, args...)
}

func InvalidTransition(from, to string) error {
	return newError(ErrInvalidTransition, "status", "cannot move from %q to %q", from, to)
}

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidTimeFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOverpayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err into an echo error. Unclassified errors keep their text
// out of the response.
func HTTP(err error) *echo.HTTPError {
	code := Status(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
