package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/logging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry is the fixed mapping from tool name to Tool. It is built once and
// never modified, so it is safe for concurrent use by many loop runs.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
	logger logging.Logger
}

// NewRegistry builds a registry over tools, preserving their order for
// documentation. Empty or duplicate names are rejected.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Registry{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
		logger: opts.Logger,
	}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool: empty tool name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("tool: duplicate tool name %q", name)
		}
		r.byName[name] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// NewBuiltinRegistry returns a registry holding the built-in filesystem tools
// rooted at root ("" means the process working directory).
func NewBuiltinRegistry(root string, optFns ...func(o *RegistryOptions)) *Registry {
	r, err := NewRegistry(Builtins(root), optFns...)
	if err != nil {
		// built-in names are fixed and unique
		panic(err)
	}
	return r
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Execute runs the directive's tool and returns its result text. It never
// fails: unknown tools, validation errors, tool errors and panics all become
// descriptive strings the model can react to.
func (r *Registry) Execute(ctx context.Context, d core.Directive) string {
	t, ok := r.Lookup(d.Name)
	if !ok {
		err := NewToolError(d.Name, fmt.Sprintf("Unknown tool: %s. Available tools: %s", d.Name, strings.Join(r.Names(), ", ")), CodeUnknownTool)
		r.logger.Warn("tool.call.unknown", "tool", d.Name)
		return err.Message
	}

	args := make(map[string]string, len(d.Input))
	for k, v := range d.Input {
		args[k] = v
	}

	if err := Validate(t, args); err != nil {
		r.logger.Warn("tool.call.invalid", "tool", d.Name, "error", err)
		return ResultText(d.Name, err)
	}

	start := time.Now()
	result, err := r.call(ctx, t, args)
	logging.LogToolCall(r.logger, d.Name, time.Since(start), err == nil, err)
	if err != nil {
		return ResultText(d.Name, err)
	}
	return result
}

func (r *Registry) call(ctx context.Context, t Tool, args map[string]string) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool.call.panic", "tool", t.Name(), "recover", rec)
			err = &ToolError{
				Tool:    t.Name(),
				Message: fmt.Sprintf("Error executing tool '%s': %v", t.Name(), rec),
				Code:    CodeExecution,
			}
		}
	}()
	return t.Call(ctx, args)
}

// ResultText converts a tool failure into the text fed back to the model.
func ResultText(toolName string, err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}
	return fmt.Sprintf("Error executing tool '%s': %v", toolName, err)
}
