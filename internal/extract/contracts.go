package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// RecordExtractor turns free text into a complete patient record. Every error it returns
// is an *Error.
type RecordExtractor interface {
	Extract(ctx context.Context, userText string) (entity.PatientRecord, error)
}

// Error is a failed extraction. Raw holds whatever text the model returned, possibly empty.
type Error struct {
	Category constants.ErrorCategory
	Detail   string
	Raw      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(cat constants.ErrorCategory, raw string, err error, format string, args ...any) *Error {
	return &Error{Category: cat, Detail: fmt.Sprintf(format, args...), Raw: raw, Err: err}
}

// CategoryOf returns the category of an extraction error, or "" if err is not one.
func CategoryOf(err error) constants.ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
