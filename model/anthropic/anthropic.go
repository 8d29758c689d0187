// Package anthropic provides a model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/model"
)

// Provider is the name reported in model.Info and BackendError.
const Provider = "anthropic"

// defaultMaxTokens is used when a request does not carry a limit; the
// Messages API requires one.
const defaultMaxTokens = 1024

// Options configures the Anthropic model adapter.
type Options struct {
	Model      anthropic.Model
	APIKey     string
	BaseURL    string
	MaxRetries int // SDK retry count when >= 0
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:      anthropic.ModelClaude3_5Sonnet20241022,
		MaxRetries: -1,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.MaxRetries >= 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Streaming requests are served by a single
// final response; the Messages API has no seed parameter so Request.Seed is ignored.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		maxTokens := req.MaxOutputTokens
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}
		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   maxTokens,
			Temperature: anthropic.Float(req.Temperature),
		}
		if system := model.TextOf(req.Messages, core.RoleSystem); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- translateError(err)
			return
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.AsText().Text)
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Content:      text.String(),
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		}
	}()

	return out, errCh
}

// buildMessages converts the conversation into Anthropic messages. System
// messages are sent separately; consecutive messages with the same role are
// merged because the API requires alternating turns.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	type turn struct {
		role core.Role
		text []string
	}
	var turns []turn
	for _, msg := range msgs {
		if msg.Role == core.RoleSystem {
			continue
		}
		role := msg.Role
		if role != core.RoleAssistant {
			role = core.RoleUser
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, msg.Content)
			continue
		}
		turns = append(turns, turn{role: role, text: []string{msg.Content}})
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}

func translateError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &model.BackendError{Provider: Provider, Message: fmt.Sprintf("anthropic api error: %v", err), Err: err}
	}
	be := &model.BackendError{
		Provider:   Provider,
		StatusCode: apiErr.StatusCode,
		Message:    err.Error(),
		Err:        err,
	}
	if apiErr.Response != nil {
		be.RequestID = apiErr.Response.Header.Get("Request-Id")
	}
	return be
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: Provider,
	}
}
