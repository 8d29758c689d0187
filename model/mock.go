package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/toolrelay/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It answers with a canned reply keyed by the last message content.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- &BackendError{Provider: m.info.Provider, Message: "no messages provided"}
			return
		}
		input := req.Messages[len(req.Messages)-1].Content
		full, ok := m.responses[input]
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: string(r)}:
				}
			}
		}
		respCh <- Response{Content: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// ErrScriptExhausted is returned by ScriptedModel once all steps are consumed.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step is one scripted backend turn: either a reply or an error.
type Step struct {
	Reply string
	Err   error
}

// ScriptedModel replays a fixed sequence of steps and records every request.
// It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel creates a ScriptedModel replaying steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Replies is a shorthand for a script made only of replies.
func Replies(replies ...string) *ScriptedModel {
	steps := make([]Step, len(replies))
	for i, r := range replies {
		steps[i] = Step{Reply: r}
	}
	return NewScriptedModel(steps...)
}

// Generate implements Model.
func (s *ScriptedModel) Generate(_ context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	s.mu.Lock()
	req.Messages = append([]core.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	var step Step
	if len(s.steps) == 0 {
		step = Step{Err: ErrScriptExhausted}
	} else {
		step, s.steps = s.steps[0], s.steps[1:]
	}
	s.mu.Unlock()

	if step.Err != nil {
		errCh <- step.Err
	} else {
		respCh <- Response{Content: step.Reply, FinishReason: "stop"}
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

// Info implements Model.
func (s *ScriptedModel) Info() Info { return Info{Name: "scripted", Provider: "mock"} }

// Requests returns a copy of every request received so far.
func (s *ScriptedModel) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of Generate calls so far.
func (s *ScriptedModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
