// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (streaming and non-streaming). Any OpenAI-compatible
// endpoint works; by default toolrelay points it at the DashScope
// compatible-mode endpoint serving the Qwen models.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider is the name reported in model.Info and BackendError.
const Provider = "openai"

// Options configure the OpenAI model adapter.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string
	// MaxRetries overrides the SDK retry count when >= 0.
	MaxRetries int
	// RequestOptions are appended to the client options (headers, transport, ...).
	RequestOptions []option.RequestOption
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:      "qwen-max-latest",
		MaxRetries: -1,
	}
}

// NewModel creates a new OpenAI model using the official client.
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
	clientOpts = append(clientOpts, opts.RequestOptions...)

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildMessages converts conversation messages into OpenAI chat messages.
func buildMessages(msgs []core.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    buildMessages(req.Messages),
		Model:       m.opts.Model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		// compatible-mode endpoints honor max_tokens rather than max_completion_tokens
		params.MaxTokens = openai.Int(req.MaxOutputTokens)
	}
	if req.Seed != 0 {
		params.Seed = openai.Int(req.Seed)
	}
	return params
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		textBuilder strings.Builder
		id          string
		finished    bool
	)
	for stream.Next() {
		ck := stream.Current()
		if ck.ID != "" {
			id = ck.ID
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				out <- model.Response{ID: id, Partial: true, Content: ch.Delta.Content}
			}
			if ch.FinishReason != "" && !finished {
				finished = true
				out <- model.Response{ID: id, Content: textBuilder.String(), FinishReason: string(ch.FinishReason)}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- m.translateError(err)
	}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- m.translateError(err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- &model.BackendError{Provider: Provider, Message: "no choices returned", RequestID: resp.ID}
		return
	}
	ch0 := resp.Choices[0]
	out <- model.Response{
		ID:           resp.ID,
		Content:      ch0.Message.Content,
		FinishReason: string(ch0.FinishReason),
		Usage: &model.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

// translateError converts SDK errors into *model.BackendError.
func (m *Model) translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &model.BackendError{Provider: Provider, Message: fmt.Sprintf("openai api error: %v", err), Err: err}
	}
	be := &model.BackendError{
		Provider:   Provider,
		StatusCode: apiErr.StatusCode,
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Err:        err,
	}
	if be.Message == "" {
		be.Message = err.Error()
	}
	if apiErr.Response != nil {
		for _, h := range []string{"X-Request-Id", "X-Dashscope-Request-Id"} {
			if v := apiErr.Response.Header.Get(h); v != "" {
				be.RequestID = v
				break
			}
		}
	}
	return be
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: Provider,
	}
}
