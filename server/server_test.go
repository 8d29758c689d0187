package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/toolrelay/internal/testutil"
	"github.com/hupe1980/toolrelay/logging"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("", http.NotFoundHandler(), nil)
	assert.Error(t, err)

	_, err = New(":0", nil, nil)
	assert.Error(t, err)

	s, err := New(":0", http.NotFoundHandler(), nil)
	require.NoError(t, err)
	assert.Equal(t, ":0", s.Addr())
	assert.False(t, s.Running())
}

func TestStartShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, err := New(addr, newTestHandler(t, model.Replies(), t.TempDir()), nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestStreaming_LinesArriveIncrementally(t *testing.T) {
	release := make(chan struct{})
	llm := &gatedModel{
		replies: []string{testutil.CallReply(tool.GetCwdName, nil), "done"},
		gate:    release,
	}
	ts := httptest.NewServer(requestLogging(logging.NoOpLogger{})(newTestHandler(t, llm, t.TempDir())))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)

	// the first three lines are readable while the second model call is blocked
	for i := 0; i < 3; i++ {
		l, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(l))
	}

	close(release)
	l, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, l, `"content":"done"`)
}

// gatedModel answers the first call immediately and blocks every later call
// until gate is closed.
type gatedModel struct {
	mu      sync.Mutex
	calls   int
	replies []string
	gate    <-chan struct{}
}

func (g *gatedModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if n > 0 {
			select {
			case <-g.gate:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		respCh <- model.Response{Content: g.replies[n%len(g.replies)], FinishReason: "stop"}
	}()
	return respCh, errCh
}

func (g *gatedModel) Info() model.Info { return model.Info{Name: "gated", Provider: "mock"} }
