// Package gollm adapts github.com/teilomillet/gollm to model.Model, giving
// access to every provider gollm supports (openai, anthropic, groq, ollama,
// ...). gollm takes a single prompt, so the conversation is flattened into a
// system prompt plus a role-tagged transcript.
package gollm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/model"
	"github.com/teilomillet/gollm"
)

// Options configures the gollm adapter.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	ExtraOpts   []gollm.ConfigOption
}

// Model wraps a gollm.LLM. Per-request options are applied with SetOption
// on the shared instance, so generation is serialized.
type Model struct {
	mu       sync.Mutex
	llm      gollm.LLM
	provider string
	name     string
}

// NewModel creates a gollm backed model.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		MaxTokens:   1000,
		Temperature: 0.4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := []gollm.ConfigOption{
		gollm.SetProvider(opts.Provider),
		gollm.SetModel(opts.Model),
		gollm.SetMaxTokens(opts.MaxTokens),
		gollm.SetTemperature(opts.Temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if opts.APIKey != "" {
		cfg = append(cfg, gollm.SetAPIKey(opts.APIKey))
	}
	cfg = append(cfg, opts.ExtraOpts...)

	llm, err := gollm.NewLLM(cfg...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", opts.Provider, err)
	}
	return NewModelFromLLM(opts.Provider, opts.Model, llm), nil
}

// NewModelFromLLM wraps an existing gollm.LLM instance.
func NewModelFromLLM(provider, name string, llm gollm.LLM) *Model {
	return &Model{llm: llm, provider: provider, name: name}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		prompt := buildPrompt(req.Messages)

		m.mu.Lock()
		m.llm.SetOption("temperature", req.Temperature)
		if req.MaxOutputTokens > 0 {
			m.llm.SetOption("max_tokens", int(req.MaxOutputTokens))
		}
		if req.Seed != 0 {
			m.llm.SetOption("seed", req.Seed)
		}
		text, err := m.llm.Generate(ctx, prompt)
		m.mu.Unlock()

		if err != nil {
			errCh <- &model.BackendError{Provider: m.provider, Message: err.Error(), Err: err}
			return
		}
		out <- model.Response{
			ID:           "resp_" + uuid.NewString()[:8],
			Content:      text,
			FinishReason: "stop",
		}
	}()

	return out, errCh
}

// buildPrompt converts the conversation into a gollm prompt.
func buildPrompt(msgs []core.Message) *gollm.Prompt {
	var opts []gollm.PromptOption
	if system := model.TextOf(msgs, core.RoleSystem); system != "" {
		opts = append(opts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	return gollm.NewPrompt(transcript(msgs), opts...)
}

// transcript renders non-system messages as a role-tagged transcript ending
// with an assistant cue.
func transcript(msgs []core.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			b.WriteString("[Assistant]: ")
		default:
			b.WriteString("[User]: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("[Assistant]:")
	return b.String()
}

// Info returns metadata describing this model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: "gollm/" + m.provider}
}
