package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/logsink"
	"github.com/ternarybob/dubtest/internal/scenario"
)

// fakeRunner narrates a fixed transcript and returns a canned result.
type fakeRunner struct {
	called  bool
	lines   []string
	success bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, sink *logsink.Sink) *scenario.Result {
	f.called = true
	for _, line := range f.lines {
		sink.Log("%s", line)
	}
	return &scenario.Result{
		RunID:      "run-1",
		Scenario:   name,
		Success:    f.success,
		Message:    name + " done",
		Screenshot: name + "_success.png",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
}

type frame struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Screenshot string `json:"screenshot"`
}

func dialTestSocket(t *testing.T, runner ScenarioRunner, scenarioName string) *websocket.Conn {
	t.Helper()

	h := NewWebSocketHandler(runner, nil, common.GetLogger())
	mux := http.NewServeMux()
	mux.HandleFunc(wsPathPrefix, h.HandleTestSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + wsPathPrefix + scenarioName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestUnknownScenarioGetsSingleResultFrame(t *testing.T) {
	runner := &fakeRunner{}
	conn := dialTestSocket(t, runner, "teleport")

	f := readFrame(t, conn)
	assert.Equal(t, "result", f.Type)
	assert.False(t, f.Success)
	assert.Contains(t, f.Message, "unknown scenario")

	// The server closes without running anything.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.False(t, runner.called)
}

func TestLogFramesPrecedeResultFrame(t *testing.T) {
	runner := &fakeRunner{
		lines:   []string{"step one", "step two", "step three"},
		success: true,
	}
	conn := dialTestSocket(t, runner, "login")

	var frames []frame
	for {
		f := readFrame(t, conn)
		frames = append(frames, f)
		if f.Type == "result" {
			break
		}
	}

	require.Len(t, frames, 4)
	for i, want := range runner.lines {
		assert.Equal(t, "log", frames[i].Type)
		assert.Equal(t, want, frames[i].Message)
	}

	result := frames[3]
	assert.True(t, result.Success)
	assert.Equal(t, "login done", result.Message)
	assert.Equal(t, "login_success.png", result.Screenshot)
}

func TestFailedRunResultFrame(t *testing.T) {
	runner := &fakeRunner{success: false}
	conn := dialTestSocket(t, runner, "upload")

	f := readFrame(t, conn)
	assert.Equal(t, "result", f.Type)
	assert.False(t, f.Success)
	assert.True(t, runner.called)
}
