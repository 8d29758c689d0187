package util

import (
	"fmt"
	"slices"
	"sort"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s '%s'", e.Message, e.Field)
}

// ParamSpec lists the parameter names a tool declares.
type ParamSpec struct {
	Required []string
	Optional []string
}

// ValidateParameters checks that every required parameter is present and
// that no undeclared parameter was supplied. Problems are reported in a
// deterministic order: missing fields first, then unexpected ones sorted by name.
func ValidateParameters(params map[string]string, spec ParamSpec) error {
	for _, name := range spec.Required {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "missing required parameter"}
		}
	}

	var unexpected []string
	for name := range params {
		if !slices.Contains(spec.Required, name) && !slices.Contains(spec.Optional, name) {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &ValidationError{Field: unexpected[0], Message: "unexpected parameter"}
	}

	return nil
}
