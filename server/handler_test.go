package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/toolrelay"
	"github.com/hupe1980/toolrelay/internal/testutil"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func newTestHandler(t *testing.T, llm model.Model, root string, optFns ...func(o *Options)) *Handler {
	t.Helper()
	relay, err := toolrelay.New(llm, func(o *toolrelay.Options) { o.WorkDir = root })
	require.NoError(t, err)
	return NewHandler(relay, optFns...)
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readLines(t *testing.T, body string) []line {
	t.Helper()
	var out []line
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var l line
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l), sc.Text())
		out = append(out, l)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestChat_PlainReply(t *testing.T) {
	llm := model.Replies("Hello there!")
	h := newTestHandler(t, llm, t.TempDir())

	rec := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeNDJSON, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.True(t, rec.Flushed)

	lines := readLines(t, rec.Body.String())
	require.Len(t, lines, 1)
	assert.Equal(t, line{Role: "assistant", Content: "Hello there!"}, lines[0])
}

func TestChat_ToolRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), nil, 0o644))

	llm := model.Replies(testutil.CallReply(tool.ListDirectoryName, map[string]string{"path": "."}), "One file.")
	h := newTestHandler(t, llm, dir)

	rec := postChat(t, h, `{"messages":[{"role":"user","content":"list files"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := readLines(t, rec.Body.String())
	require.Len(t, lines, 4)
	assert.Equal(t, "assistant", lines[0].Role)
	assert.Equal(t, "tool_call", lines[1].Role)
	assert.Equal(t, `Tool call: {"name":"list-directory","input":{"path":"."}}`, lines[1].Content)
	assert.Equal(t, "tool_call", lines[2].Role)
	assert.Equal(t, "Tool result: Contents of directory '.': notes.md", lines[2].Content)
	assert.Equal(t, line{Role: "assistant", Content: "One file."}, lines[3])
}

func TestChat_BackendError(t *testing.T) {
	llm := model.NewScriptedModel(model.Step{Err: &model.BackendError{
		StatusCode: 429,
		Code:       "Throttling",
		Message:    "Requests rate limit exceeded.",
		RequestID:  "abc",
	}})
	h := newTestHandler(t, llm, t.TempDir())

	rec := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := readLines(t, rec.Body.String())
	require.Len(t, lines, 1)
	assert.Equal(t, "Model inference failed.", lines[0].Error)
	assert.Equal(t, "Request id: abc, Status code: 429, Error code: Throttling, Error message: Requests rate limit exceeded.", lines[0].Details)
	assert.Equal(t, 1, llm.Calls())

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(rec.Body.String())), &raw))
	assert.NotContains(t, raw, "role")
}

func TestChat_AppliesDefaultsAndOverrides(t *testing.T) {
	llm := model.Replies("a", "b")
	h := newTestHandler(t, llm, t.TempDir(), func(o *Options) {
		o.DefaultTemperature = 0.4
		o.DefaultMaxOutputTokens = 1000
	})

	postChat(t, h, `{"messages":[]}`)
	postChat(t, h, `{"messages":[{"role":"user","content":"x"}],"temperature":1.1,"max_output_tokens":50}`)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 0.4, reqs[0].Temperature)
	assert.Equal(t, int64(1000), reqs[0].MaxOutputTokens)
	assert.Equal(t, 1.1, reqs[1].Temperature)
	assert.Equal(t, int64(50), reqs[1].MaxOutputTokens)
}

func TestChat_PrependsPreamble(t *testing.T) {
	llm := model.Replies("ok")
	h := newTestHandler(t, llm, t.TempDir())

	postChat(t, h, `{"messages":[{"role":"system","content":"Be terse."},{"role":"user","content":"hi"}]}`)

	msgs := llm.Requests()[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", string(msgs[0].Role))
	assert.Contains(t, msgs[0].Content, "You have the following tools available")
	assert.True(t, strings.HasSuffix(msgs[0].Content, "Be terse."))
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "empty body", body: "", wantErr: "request body is required"},
		{name: "invalid json", body: `{"messages":`, wantErr: "invalid JSON body"},
		{name: "wrong type", body: `{"messages":"hi"}`, wantErr: "invalid JSON body"},
		{name: "bad role", body: `{"messages":[{"role":"tool","content":"x"}]}`, wantErr: "must be one of"},
		{name: "missing role", body: `{"messages":[{"content":"x"}]}`, wantErr: "is required"},
		{name: "negative temperature", body: `{"temperature":-1}`, wantErr: "invalid request"},
		{name: "zero tokens", body: `{"max_output_tokens":0}`, wantErr: "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := model.Replies("unused")
			h := newTestHandler(t, llm, t.TempDir())

			rec := postChat(t, h, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantErr)
			assert.Equal(t, 0, llm.Calls())
		})
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	h := newTestHandler(t, model.Replies("x"), t.TempDir(), func(o *Options) { o.MaxBodyBytes = 16 })

	rec := postChat(t, h, `{"messages":[{"role":"user","content":"this is far too long"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds 16 bytes")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, model.Replies("x"), t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, model.Replies("x"), t.TempDir(), func(o *Options) { o.AllowedOrigin = "https://app.example" })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = postChat(t, h, `{"messages":[]}`)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Disabled(t *testing.T) {
	h := newTestHandler(t, model.Replies("x"), t.TempDir(), func(o *Options) { o.AllowedOrigin = "" })

	rec := postChat(t, h, `{"messages":[]}`)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, model.Replies(), t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIsRequestError(t *testing.T) {
	assert.True(t, IsRequestError(invalidRequest("bad")))
	assert.False(t, IsRequestError(assert.AnError))
}
