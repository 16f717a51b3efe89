package fusion

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the sentinel matched by every InputError.
var ErrInvalidInput = errors.New("invalid input")

// InputErrorCode categorizes rejected signal input.
type InputErrorCode string

const (
	// ErrCodeConfidenceRange indicates confidence outside [0,1].
	ErrCodeConfidenceRange InputErrorCode = "CONFIDENCE_OUT_OF_RANGE"

	// ErrCodeEmptyFeatures indicates a nil or empty feature vector.
	ErrCodeEmptyFeatures InputErrorCode = "EMPTY_FEATURES"

	// ErrCodeNonFinite indicates NaN or ±Inf in a numeric field.
	ErrCodeNonFinite InputErrorCode = "NON_FINITE_VALUE"

	// ErrCodeMalformedLocation indicates a location with non-finite coordinates.
	ErrCodeMalformedLocation InputErrorCode = "MALFORMED_LOCATION"

	// ErrCodeUnknownSource indicates an undeclared source class.
	ErrCodeUnknownSource InputErrorCode = "UNKNOWN_SOURCE"
)

// InputError describes why a signal was rejected.
// It matches ErrInvalidInput under errors.Is.
type InputError struct {
	Code    InputErrorCode
	Field   string
	Message string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrInvalidInput) true for every InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInputError creates an InputError.
func NewInputError(code InputErrorCode, field, format string, args ...any) *InputError {
	return &InputError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err is (or wraps) an InputError.
func IsInvalidInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
