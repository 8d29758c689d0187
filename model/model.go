package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/toolrelay/core"
)

// Request captures the model input for one turn of the agent loop.
type Request struct {
	Messages        []core.Message `json:"messages"`
	Temperature     float64        `json:"temperature"`
	MaxOutputTokens int64          `json:"max_output_tokens"`
	Seed            int64          `json:"seed"`
	Stream          bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required by the agent loop.
//
// Generate must close both channels when done. A failed call delivers exactly
// one error on the error channel, preferably a *BackendError.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Call runs a single Generate call to completion.
func Call(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	return Collect(ctx, respCh, errCh)
}

// Collect drains the channels of a Generate call and returns the final
// response. Partial chunks are concatenated when a backend never emits a final
// response.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final    *Response
		partials strings.Builder
		firstErr error
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partials.WriteString(r.Content)
				continue
			}
			rc := r
			final = &rc
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return Response{}, firstErr
	}
	if final != nil {
		return *final, nil
	}
	if partials.Len() > 0 {
		return Response{Content: partials.String(), FinishReason: "stop"}, nil
	}
	return Response{}, &BackendError{Message: "no response returned"}
}

// BackendError is a structured failure reported by a model backend.
type BackendError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Err        error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		fmt.Fprintf(&b, "[%s] ", e.Provider)
	}
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status=%d", e.StatusCode)
		if e.Code != "" {
			fmt.Fprintf(&b, ", code=%s", e.Code)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying SDK error.
func (e *BackendError) Unwrap() error { return e.Err }

// Details renders the error in the form streamed to callers.
func (e *BackendError) Details() string {
	return fmt.Sprintf("Request id: %s, Status code: %d, Error code: %s, Error message: %s",
		e.RequestID, e.StatusCode, e.Code, e.Message)
}

// AsBackendError returns err as a *BackendError, wrapping errors that are not
// one (network failures, cancellations) with only a message.
func AsBackendError(err error) *BackendError {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return &BackendError{Message: err.Error(), Err: err}
}

// TextOf joins the contents of all messages with the given role.
func TextOf(msgs []core.Message, role core.Role) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == role && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
