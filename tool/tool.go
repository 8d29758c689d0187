// Package tool implements the closed set of local capabilities the model may
// request through a directive. Every tool takes named string parameters and
// returns a string; failures are reported as *ToolError and converted into
// descriptive result text by the Registry so the agent loop never sees them
// as errors.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolrelay/internal/util"
)

// Error codes carried by ToolError.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeExecution        = "EXECUTION_ERROR"
)

// Parameter declares one named string parameter of a tool.
type Parameter struct {
	Name        string
	Type        string // documented type, "string" for every built-in
	Description string
	Required    bool
}

// Tool defines a locally executable capability.
//
// Implementations should:
//   - Provide a stable, kebab-case name (the name the model uses in directives)
//   - Describe parameters and result so the system preamble can document them
//   - Return *ToolError for expected failures with a human readable Message
//   - Be safe for concurrent use; tools must not depend on conversation state
type Tool interface {
	// Name returns the unique identifier used in directives.
	Name() string

	// Description returns a one-line summary shown to the model.
	Description() string

	// Parameters returns the declared parameters in documentation order.
	Parameters() []Parameter

	// Returns describes the result string shown to the model.
	Returns() string

	// Call executes the tool. Arguments passed by a Registry have already
	// been checked against Parameters; direct callers should use Validate.
	Call(ctx context.Context, args map[string]string) (string, error)
}

// ToolError represents errors that occur during tool execution. Message is
// the complete text fed back to the model.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`       // Underlying cause, if any
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Validate checks args against the tool's declared parameters: every required
// parameter present and no undeclared ones.
func Validate(t Tool, args map[string]string) error {
	return validateArgs(t.Name(), args, paramSpec(t.Parameters()))
}

func paramSpec(params []Parameter) util.ParamSpec {
	var spec util.ParamSpec
	for _, p := range params {
		if p.Required {
			spec.Required = append(spec.Required, p.Name)
		} else {
			spec.Optional = append(spec.Optional, p.Name)
		}
	}
	return spec
}

func validateArgs(name string, args map[string]string, spec util.ParamSpec) error {
	if err := util.ValidateParameters(args, spec); err != nil {
		return &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("Error executing tool '%s': %v", name, err),
			Code:    CodeValidation,
			Err:     err,
		}
	}
	return nil
}
