package transfer

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies infrastructure failures that abort a run.
// Data-quality findings are never errors; they live in the cleaning journal.
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryConfig is invalid or incomplete configuration
	ErrorCategoryConfig
	// ErrorCategorySource is an unreadable or malformed raw table
	ErrorCategorySource
	// ErrorCategorySink is a failed export or database write
	ErrorCategorySink
	// ErrorCategoryVerification is a failed post-write check
	ErrorCategoryVerification
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryConfig:
		return "Config"
	case ErrorCategorySource:
		return "Source"
	case ErrorCategorySink:
		return "Sink"
	case ErrorCategoryVerification:
		return "Verification"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// Sentinel causes, matched with errors.Is
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrSinkFailed         = errors.New("sink failed")
	ErrVerificationFailed = errors.New("verification failed")
)

func (ec ErrorCategory) sentinel() error {
	switch ec {
	case ErrorCategoryConfig:
		return ErrInvalidConfig
	case ErrorCategorySource:
		return ErrSourceUnavailable
	case ErrorCategorySink:
		return ErrSinkFailed
	case ErrorCategoryVerification:
		return ErrVerificationFailed
	default:
		return nil
	}
}

// RunError is an infrastructure failure with the component it came from
type RunError struct {
	Category ErrorCategory
	Target   string // file, table or stage involved
	Err      error
}

// NewRunError wraps err; a nil err yields nil
func NewRunError(category ErrorCategory, target string, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{Category: category, Target: target, Err: err}
}

// Error implements error
func (e *RunError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("[%s] %v", e.Category, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Target, e.Err)
}

// Unwrap exposes both the category sentinel and the underlying cause
func (e *RunError) Unwrap() []error {
	if s := e.Category.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// CategorizeError returns the category of a RunError anywhere in err's chain
func CategorizeError(err error) ErrorCategory {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Category
	}
	return ErrorCategoryNone
}
