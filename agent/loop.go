package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/directive"
	"github.com/hupe1980/toolrelay/logging"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/tool"
)

// Error event messages.
const (
	ErrMsgModelInference = "Model inference failed."
	ErrMsgTurnLimit      = "Turn limit reached."
)

// Sampling defaults applied when an Invocation leaves them unset.
const (
	DefaultTemperature     = 0.4
	DefaultMaxOutputTokens = 1000
)

// Options configures a Loop.
type Options struct {
	// MaxTurns caps the number of model calls per run. Zero means unlimited.
	MaxTurns int

	// Parser extracts directives from model replies.
	Parser *directive.Parser

	// Seed returns the sampling seed for each model call.
	Seed func() int64

	// EventBufferSize is the capacity of the channel returned by Run.
	EventBufferSize int

	Logger logging.Logger
}

// Loop runs conversations against a model and a tool registry. It holds no
// per-conversation state and can serve many runs concurrently.
type Loop struct {
	llm      model.Model
	registry *tool.Registry
	parser   *directive.Parser
	seed     func() int64
	maxTurns int
	bufSize  int
	logger   logging.Logger
}

// NewLoop creates a Loop.
func NewLoop(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Loop {
	opts := Options{
		Parser: directive.NewParser(),
		Seed:   RandomSeed,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Parser == nil {
		opts.Parser = directive.NewParser()
	}
	if opts.Seed == nil {
		opts.Seed = RandomSeed
	}

	return &Loop{
		llm:      llm,
		registry: registry,
		parser:   opts.Parser,
		seed:     opts.Seed,
		maxTurns: opts.MaxTurns,
		bufSize:  opts.EventBufferSize,
		logger:   opts.Logger,
	}
}

// RandomSeed returns a random seed in [1, 10000].
func RandomSeed() int64 { return rand.Int64N(10000) + 1 }

// Invocation is the input of a single run.
type Invocation struct {
	// ConversationID tags every event and log line. Generated when empty.
	ConversationID string

	// Messages is the initial conversation, normally produced by
	// prompt.Builder. It is copied, never modified.
	Messages []core.Message

	Temperature     float64
	MaxOutputTokens int64
}

// Run starts the loop and returns its event channel. The channel is closed
// when the loop terminates. Consumers must drain it or cancel ctx.
func (l *Loop) Run(ctx context.Context, inv Invocation) <-chan core.Event {
	if inv.ConversationID == "" {
		inv.ConversationID = core.NewID()
	}
	if inv.MaxOutputTokens <= 0 {
		inv.MaxOutputTokens = DefaultMaxOutputTokens
	}

	events := make(chan core.Event, l.bufSize)

	r := &run{
		loop:    l,
		inv:     inv,
		conv:    core.NewConversation(inv.Messages),
		events:  events,
		limiter: NewTurnLimiter(l.maxTurns),
		logger:  logging.With(l.logger, "conversation_id", inv.ConversationID),
	}

	go func() {
		defer close(events)
		r.execute(ctx)
	}()

	return events
}

// run carries the state owned by one Run call.
type run struct {
	loop    *Loop
	inv     Invocation
	conv    *core.Conversation
	events  chan<- core.Event
	limiter *TurnLimiter
	logger  logging.Logger
}

func (r *run) execute(ctx context.Context) {
	r.logger.Debug("agent.run.start", "messages", r.conv.Len())

	for {
		if err := r.limiter.Acquire(); err != nil {
			turns := r.limiter.Count()
			r.logger.Warn("agent.run.turn_limit", "turns", turns)
			r.emit(ctx, core.NewErrorEvent(ErrMsgTurnLimit, fmt.Sprintf("Stopped after %d model turns.", turns)))
			return
		}

		if !r.turn(ctx) {
			break
		}
	}

	r.logger.Debug("agent.run.end", "turns", r.limiter.Count())
}

// turn performs one AwaitingModel -> Parsing -> Executing cycle and reports
// whether another model call should follow.
func (r *run) turn(ctx context.Context) bool {
	turn := r.limiter.Count()

	req := model.Request{
		Messages:        r.conv.Messages(),
		Temperature:     r.inv.Temperature,
		MaxOutputTokens: r.inv.MaxOutputTokens,
		Seed:            r.loop.seed(),
	}

	start := time.Now()
	resp, err := model.Call(ctx, r.loop.llm, req)
	logging.LogLLMCall(r.logger, r.loop.llm.Info().Name, time.Since(start), err == nil, err)

	if err != nil {
		if ctx.Err() != nil {
			r.logger.Debug("agent.run.cancelled", "turn", turn)
			return false
		}
		r.emit(ctx, core.NewErrorEvent(ErrMsgModelInference, model.AsBackendError(err).Details()))
		return false
	}

	reply := core.NewAssistantMessage(resp.Content)
	r.conv.Append(reply)
	if !r.emit(ctx, core.NewAssistantEvent(reply.Content)) {
		return false
	}

	res := r.loop.parser.Parse(reply.Content)
	switch res.Status {
	case directive.Found:
	case directive.Malformed:
		r.logger.Warn("agent.directive.malformed", "turn", turn, "error", res.Err)
		return false
	default:
		return false
	}

	d := res.Directive
	r.logger.Debug("agent.directive.found", "turn", turn, "tool", d.Name)
	if !r.emit(ctx, core.NewDirectiveEvent(d)) {
		return false
	}

	result := core.NewToolResultMessage(r.loop.registry.Execute(ctx, d))
	r.conv.Append(result)

	return r.emit(ctx, core.NewToolResultEvent(result))
}

func (r *run) tag(ev core.Event) core.Event {
	ev.ConversationID = r.inv.ConversationID
	return ev
}

// emit publishes ev and reports false when ctx was cancelled first.
func (r *run) emit(ctx context.Context, ev core.Event) bool {
	ev = r.tag(ev)
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		r.logger.Debug("agent.run.cancelled", "turn", r.limiter.Count(), "error", ctx.Err())
		return false
	}
}

// Collect drains events until the channel closes or ctx is done.
func Collect(ctx context.Context, events <-chan core.Event) []core.Event {
	var out []core.Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-ctx.Done():
			return out
		}
	}
}
