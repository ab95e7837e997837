package operator

import (
	"errors"
	"fmt"
)

// UnknownOperatorError is returned by Registry.Lookup for an unregistered kind.
// It is fatal to the call that triggered it, never to a whole graph.
type UnknownOperatorError struct {
	Kind Kind
}

// Error implements the error interface.
func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("UNKNOWN_OPERATOR: operator kind %q is not registered", e.Kind)
}

// IsUnknownOperator reports whether err is (or wraps) an UnknownOperatorError.
func IsUnknownOperator(err error) bool {
	var ue *UnknownOperatorError
	return errors.As(err, &ue)
}

// ConfigError reports a missing or malformed configuration entry.
// Transforms return it when required configuration is absent (an empty
// encryption key) or names something unrecognized (an unknown mode).
type ConfigError struct {
	Kind    Kind
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: config %q: %s", e.Kind, e.Field, e.Message)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
