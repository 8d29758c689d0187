package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolrelay/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// It validates the supplied arguments against the declared parameters (every
// required parameter present, no undeclared ones) before invoking the wrapped
// function. A FunctionTool has no mutable state after construction and is safe
// for concurrent use.
type FunctionTool struct {
	name        string
	description string
	returns     string
	parameters  []Parameter
	spec        util.ParamSpec
	fn          func(ctx context.Context, args map[string]string) (string, error)
}

// NewFunctionTool constructs a FunctionTool.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "echo",
//	  "Echo the given text",
//	  "String - the text",
//	  []Parameter{{Name: "text", Type: "string", Description: "text to echo", Required: true}},
//	  func(_ context.Context, args map[string]string) (string, error) {
//	    return args["text"], nil
//	  },
//	)
func NewFunctionTool(
	name, description, returns string,
	parameters []Parameter,
	fn func(ctx context.Context, args map[string]string) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		returns:     returns,
		parameters:  parameters,
		spec:        paramSpec(parameters),
		fn:          fn,
	}
}

// Name returns the tool name used in directives.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the declared parameters.
func (t *FunctionTool) Parameters() []Parameter { return t.parameters }

// Returns describes the result.
func (t *FunctionTool) Returns() string { return t.returns }

// Call validates args then invokes the wrapped function.
//
// Error Semantics:
//
//	*ToolError (returned directly) -> forwarded unchanged
//	validation failure             -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                    -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, args map[string]string) (string, error) {
	if err := validateArgs(t.name, args, t.spec); err != nil {
		return "", err
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return "", toolErr
		}
		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("Error executing tool '%s': %v", t.name, err),
			Code:    CodeExecution,
			Err:     err,
		}
	}

	return result, nil
}
