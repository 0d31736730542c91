package insight

import (
	"errors"
	"fmt"
)

// InsufficientDataError is the only error kind the analysis core raises. It
// signals that an input series or an alignment does not carry enough points
// for the requested computation; the Reason string says which gate failed.
type InsufficientDataError struct {
	Reason string
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

// NewInsufficientDataError creates a new InsufficientDataError with a specific reason.
func NewInsufficientDataError(reason string) error {
	return &InsufficientDataError{
		Reason: reason,
	}
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted reason.
func NewInsufficientDataErrorf(format string, args ...interface{}) error {
	return &InsufficientDataError{
		Reason: fmt.Sprintf(format, args...),
	}
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
