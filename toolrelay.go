// Package toolrelay wires a model backend, a tool registry, the system
// preamble and the agent loop into a single entry point.
//
//	relay, err := toolrelay.New(openai.NewModel())
//	id, events := relay.Invoke(ctx, agent.Invocation{
//		Messages: []core.Message{core.NewUserMessage("List the files here.")},
//	})
//	for ev := range events {
//		...
//	}
package toolrelay

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolrelay/agent"
	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/logging"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/prompt"
	"github.com/hupe1980/toolrelay/tool"
)

// Options configures a Relay.
type Options struct {
	// Tools replaces the built-in filesystem tools when non-nil.
	Tools []tool.Tool

	// WorkDir is the base for relative paths of the built-in tools.
	// Empty means the process working directory.
	WorkDir string

	// AssistantName is used in the system preamble.
	AssistantName string

	// MaxTurns caps model calls per invocation. Zero means unlimited.
	MaxTurns int

	// EventBufferSize is the capacity of invocation event channels.
	EventBufferSize int

	Logger logging.Logger
}

// Relay runs conversations against one model with one fixed tool set. It is
// safe for concurrent use; every invocation owns its own conversation.
type Relay struct {
	registry *tool.Registry
	builder  *prompt.Builder
	loop     *agent.Loop
	llm      model.Model
	logger   logging.Logger
}

// New creates a Relay for llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Relay, error) {
	opts := Options{
		AssistantName: "Qwen-Max",
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	tools := opts.Tools
	if tools == nil {
		tools = tool.Builtins(opts.WorkDir)
	}
	registry, err := tool.NewRegistry(tools, func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
	if err != nil {
		return nil, err
	}

	builder, err := prompt.NewBuilder(registry, func(o *prompt.Options) { o.AssistantName = opts.AssistantName })
	if err != nil {
		return nil, err
	}

	loop := agent.NewLoop(llm, registry, func(o *agent.Options) {
		o.MaxTurns = opts.MaxTurns
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
	})

	return &Relay{
		registry: registry,
		builder:  builder,
		loop:     loop,
		llm:      llm,
		logger:   opts.Logger,
	}, nil
}

// Registry returns the tool registry.
func (r *Relay) Registry() *tool.Registry { return r.registry }

// SystemPrompt returns the preamble prepended to every conversation.
func (r *Relay) SystemPrompt() string { return r.builder.SystemPrompt() }

// ModelInfo describes the backend.
func (r *Relay) ModelInfo() model.Info { return r.llm.Info() }

// Invoke starts a run. inv.Messages are the caller's messages; the system
// preamble is prepended before the loop starts. It returns the conversation
// id and the event channel, which is closed when the run ends.
func (r *Relay) Invoke(ctx context.Context, inv agent.Invocation) (string, <-chan core.Event) {
	if inv.ConversationID == "" {
		inv.ConversationID = core.NewID()
	}
	inv.Messages = r.builder.Build(inv.Messages)
	return inv.ConversationID, r.loop.Run(ctx, inv)
}

// InvokeSync runs to completion and returns all events. A terminal error
// event is also returned as *RunError.
func (r *Relay) InvokeSync(ctx context.Context, inv agent.Invocation) (string, []core.Event, error) {
	id, ch := r.Invoke(ctx, inv)
	events := agent.Collect(ctx, ch)
	if err := ctx.Err(); err != nil {
		return id, events, err
	}
	if n := len(events); n > 0 && events[n-1].IsError() {
		last := events[n-1]
		return id, events, &RunError{Message: last.Error, Details: last.Details}
	}
	return id, events, nil
}

// RunError is the error event that ended a run.
type RunError struct {
	Message string
	Details string
}

func (e *RunError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Message, e.Details)
}
