package model

import "fmt"

// ShapeMismatchError reports feature tensors whose dimensions are malformed or
// mutually inconsistent. It fails a single decode and never the process.
type ShapeMismatchError struct {
	// Tensor names the offending tensor, when one can be singled out.
	Tensor string
	// Reason describes the inconsistency.
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	if e.Tensor == "" {
		return "shape mismatch: " + e.Reason
	}
	return fmt.Sprintf("shape mismatch in %s: %s", e.Tensor, e.Reason)
}

// ConfigurationError reports a decoding parameter outside its valid range.
// It is raised when the configuration is loaded, never per frame.
type ConfigurationError struct {
	// Field is the parameter name as it appears in configuration files.
	Field string
	// Reason describes the valid range.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
