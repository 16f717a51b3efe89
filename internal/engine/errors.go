package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/sigfuse/internal/fusion"
)

// ErrInvalidInput is matched by every rejected AddSignal call.
var ErrInvalidInput = fusion.ErrInvalidInput

// InputError describes a rejected signal; see fusion.InputError.
type InputError = fusion.InputError

// ErrSignalNotFound is returned when a signal id is not retained.
var ErrSignalNotFound = errors.New("signal not found")

// ErrDuplicateSignal is returned when the id generator repeats an id.
var ErrDuplicateSignal = errors.New("duplicate signal id")

// ConfigError reports an invalid construction-time configuration.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// IsInvalidInput reports whether err is a rejected-input error.
func IsInvalidInput(err error) bool {
	return fusion.IsInvalidInput(err)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
