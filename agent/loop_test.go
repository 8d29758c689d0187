package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/internal/testutil"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func startConversation() []core.Message {
	return []core.Message{
		core.NewSystemMessage("preamble"),
		core.NewUserMessage("hello"),
	}
}

func runLoop(t *testing.T, llm model.Model, optFns ...func(o *Options)) []core.Event {
	t.Helper()
	loop := NewLoop(llm, tool.NewBuiltinRegistry(t.TempDir()), optFns...)
	return testutil.CollectEvents(t, loop.Run(context.Background(), Invocation{
		Messages:    startConversation(),
		Temperature: 0.4,
	}))
}

func TestLoop_NoDirectiveEmitsOneEvent(t *testing.T) {
	llm := model.Replies("Hi! How can I help?")

	events := runLoop(t, llm)

	require.Len(t, events, 1)
	assert.Equal(t, core.EventAssistant, events[0].Kind)
	assert.Equal(t, "Hi! How can I help?", events[0].Content)
	assert.Equal(t, 1, llm.Calls())
}

func TestLoop_MalformedDirectiveTerminates(t *testing.T) {
	replies := []string{
		testutil.NewReplyBuilder().Raw("{not json").Build(),
		testutil.NewReplyBuilder().Raw(`{"input": {}}`).Build(),
		"[[qwen-tool-start]] only a start marker",
	}
	for _, reply := range replies {
		llm := model.Replies(reply, "never requested")

		events := runLoop(t, llm)

		require.Len(t, events, 1, reply)
		assert.Equal(t, core.EventAssistant, events[0].Kind)
		assert.Equal(t, 1, llm.Calls())
	}
}

func TestLoop_ListDirectoryThenReply(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	call := testutil.NewReplyBuilder().Call(tool.ListDirectoryName, map[string]string{"path": dir}).Build()
	llm := model.Replies(call, "There are two files.")

	events := runLoop(t, llm)

	require.Equal(t, []core.EventKind{
		core.EventAssistant,
		core.EventDirective,
		core.EventToolResult,
		core.EventAssistant,
	}, testutil.Kinds(events))

	assert.Equal(t, call, events[0].Content)
	require.NotNil(t, events[1].Directive)
	assert.Equal(t, tool.ListDirectoryName, events[1].Directive.Name)
	assert.Equal(t, "Tool call: "+events[1].Directive.String(), events[1].Content)

	listing := tool.NewBuiltinRegistry("").Execute(context.Background(),
		core.NewDirective(tool.ListDirectoryName, map[string]string{"path": dir}))
	assert.Equal(t, "Contents of directory '"+dir+"': a.txt, b.txt", listing)
	assert.Equal(t, []string{
		call,
		"Tool call: " + events[1].Directive.String(),
		"Tool result: " + listing,
		"There are two files.",
	}, testutil.Contents(events))

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	second := reqs[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, core.NewAssistantMessage(call), second[2])
	assert.Equal(t, core.NewToolResultMessage(listing), second[3])
	assert.Equal(t, core.RoleUser, second[3].Role)
}

func TestLoop_UnknownToolContinues(t *testing.T) {
	llm := model.Replies(
		testutil.CallReply("delete-everything", nil),
		"Sorry, I cannot do that.",
	)

	events := runLoop(t, llm)

	require.Len(t, events, 4)
	assert.Equal(t, core.EventToolResult, events[2].Kind)
	assert.True(t, strings.HasPrefix(events[2].Content, "Tool result: Unknown tool: delete-everything."))
	assert.Contains(t, events[2].Content, tool.ListDirectoryName)
	assert.Equal(t, 2, llm.Calls())
}

func TestLoop_ToolFailureBecomesResult(t *testing.T) {
	llm := model.Replies(
		testutil.CallReply(tool.ReadFileName, map[string]string{"path": "missing.txt"}),
		"The file does not exist.",
	)

	events := runLoop(t, llm)

	require.Len(t, events, 4)
	assert.Equal(t, "Tool result: File not found: missing.txt", events[2].Content)
}

func TestLoop_BackendErrorEmitsOneErrorEvent(t *testing.T) {
	llm := model.NewScriptedModel(model.Step{Err: &model.BackendError{
		StatusCode: 401,
		Code:       "InvalidApiKey",
		Message:    "Invalid API-key provided.",
		RequestID:  "req-1",
	}})

	events := runLoop(t, llm)

	require.Len(t, events, 1)
	ev := events[0]
	assert.True(t, ev.IsError())
	assert.Equal(t, ErrMsgModelInference, ev.Error)
	assert.Equal(t, "Request id: req-1, Status code: 401, Error code: InvalidApiKey, Error message: Invalid API-key provided.", ev.Details)
	assert.Equal(t, 1, llm.Calls())
}

func TestLoop_BackendErrorAfterToolCall(t *testing.T) {
	llm := model.NewScriptedModel(
		model.Step{Reply: testutil.CallReply(tool.GetCwdName, nil)},
		model.Step{Err: errors.New("connection reset")},
	)

	events := runLoop(t, llm)

	require.Equal(t, []core.EventKind{
		core.EventAssistant,
		core.EventDirective,
		core.EventToolResult,
		core.EventError,
	}, testutil.Kinds(events))
	assert.Contains(t, events[3].Details, "connection reset")
	assert.Equal(t, 2, llm.Calls())
}

func TestLoop_TurnLimit(t *testing.T) {
	call := testutil.CallReply(tool.GetCwdName, nil)
	llm := model.Replies(call, call, call, call)

	events := runLoop(t, llm, func(o *Options) { o.MaxTurns = 2 })

	require.Len(t, events, 7)
	last := events[6]
	assert.True(t, last.IsError())
	assert.Equal(t, ErrMsgTurnLimit, last.Error)
	assert.Equal(t, 2, llm.Calls())
}

func TestLoop_RequestParameters(t *testing.T) {
	llm := model.Replies(testutil.CallReply(tool.GetCwdName, nil), "done")
	seeds := []int64{7, 11}
	loop := NewLoop(llm, tool.NewBuiltinRegistry(t.TempDir()), func(o *Options) {
		o.Seed = func() int64 {
			s := seeds[0]
			seeds = seeds[1:]
			return s
		}
	})

	_ = testutil.CollectEvents(t, loop.Run(context.Background(), Invocation{
		Messages:        startConversation(),
		Temperature:     0.9,
		MaxOutputTokens: 256,
	}))

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	for i, req := range reqs {
		assert.Equal(t, 0.9, req.Temperature)
		assert.Equal(t, int64(256), req.MaxOutputTokens)
		assert.Equal(t, []int64{7, 11}[i], req.Seed)
	}
	assert.Len(t, reqs[0].Messages, 2)
}

func TestLoop_DefaultMaxOutputTokens(t *testing.T) {
	llm := model.Replies("ok")
	_ = runLoop(t, llm)
	assert.Equal(t, int64(DefaultMaxOutputTokens), llm.Requests()[0].MaxOutputTokens)
}

func TestLoop_DoesNotMutateInvocationMessages(t *testing.T) {
	msgs := startConversation()
	llm := model.Replies(testutil.CallReply(tool.GetCwdName, nil), "done")
	loop := NewLoop(llm, tool.NewBuiltinRegistry(t.TempDir()))

	_ = testutil.CollectEvents(t, loop.Run(context.Background(), Invocation{Messages: msgs}))

	assert.Equal(t, startConversation(), msgs)
}

func TestLoop_ConversationIDOnEvents(t *testing.T) {
	llm := model.Replies(testutil.CallReply(tool.GetCwdName, nil), "done")
	loop := NewLoop(llm, tool.NewBuiltinRegistry(t.TempDir()))

	events := testutil.CollectEvents(t, loop.Run(context.Background(), Invocation{
		ConversationID: "conv-1",
		Messages:       startConversation(),
	}))

	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "conv-1", ev.ConversationID)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestLoop_CancelledContextStopsSilently(t *testing.T) {
	call := testutil.CallReply(tool.GetCwdName, nil)
	llm := model.Replies(call, call, call)
	loop := NewLoop(llm, tool.NewBuiltinRegistry(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	ch := loop.Run(ctx, Invocation{Messages: startConversation()})

	first := <-ch
	assert.Equal(t, core.EventAssistant, first.Kind)
	cancel()

	rest := testutil.CollectEvents(t, ch)
	for _, ev := range rest {
		assert.False(t, ev.IsError())
	}
}

func TestRandomSeed_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		s := RandomSeed()
		assert.GreaterOrEqual(t, s, int64(1))
		assert.LessOrEqual(t, s, int64(10000))
	}
}

func TestCollect(t *testing.T) {
	events := Collect(context.Background(), NewLoop(model.Replies("hi"), tool.NewBuiltinRegistry("")).Run(context.Background(), Invocation{}))
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Content)
}

// mockTool records calls made through the registry.
type mockTool struct{ mock.Mock }

func (m *mockTool) Name() string        { return "lookup" }
func (m *mockTool) Description() string { return "Look up a key" }
func (m *mockTool) Parameters() []tool.Parameter {
	return []tool.Parameter{{Name: "key", Required: true}}
}
func (m *mockTool) Returns() string { return "String - the value" }

func (m *mockTool) Call(ctx context.Context, args map[string]string) (string, error) {
	ret := m.Called(ctx, args)
	return ret.String(0), ret.Error(1)
}

func TestLoop_PassesDirectiveInputToTool(t *testing.T) {
	lookup := &mockTool{}
	lookup.On("Call", mock.Anything, map[string]string{"key": "answer"}).Return("42", nil).Once()

	reg, err := tool.NewRegistry([]tool.Tool{lookup})
	require.NoError(t, err)

	llm := model.Replies(testutil.CallReply("lookup", map[string]string{"key": "answer"}), "It is 42.")
	events := testutil.CollectEvents(t, NewLoop(llm, reg).Run(context.Background(), Invocation{Messages: startConversation()}))

	require.Len(t, events, 4)
	assert.Equal(t, "Tool result: 42", events[2].Content)
	lookup.AssertExpectations(t)
}

func TestLoop_ToolErrorFedBack(t *testing.T) {
	lookup := &mockTool{}
	lookup.On("Call", mock.Anything, mock.Anything).Return("", errors.New("backend offline")).Once()

	reg, err := tool.NewRegistry([]tool.Tool{lookup})
	require.NoError(t, err)

	llm := model.Replies(testutil.CallReply("lookup", map[string]string{"key": "x"}), "Sorry.")
	events := testutil.CollectEvents(t, NewLoop(llm, reg).Run(context.Background(), Invocation{Messages: startConversation()}))

	require.Len(t, events, 4)
	assert.Equal(t, "Tool result: Error executing tool 'lookup': backend offline", events[2].Content)
	assert.Equal(t, 2, llm.Calls())
	lookup.AssertExpectations(t)
}

func TestLoop_InvalidToolArgumentsFedBack(t *testing.T) {
	lookup := &mockTool{}

	reg, err := tool.NewRegistry([]tool.Tool{lookup})
	require.NoError(t, err)

	llm := model.Replies(testutil.CallReply("lookup", map[string]string{"id": "7"}), "Let me retry.")
	events := testutil.CollectEvents(t, NewLoop(llm, reg).Run(context.Background(), Invocation{Messages: startConversation()}))

	require.Len(t, events, 4)
	assert.Equal(t, "Tool result: Error executing tool 'lookup': missing required parameter 'key'", events[2].Content)
	assert.Equal(t, 2, llm.Calls())
	lookup.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}
