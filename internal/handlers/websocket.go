package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/logsink"
	"github.com/ternarybob/dubtest/internal/notify"
	"github.com/ternarybob/dubtest/internal/scenario"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsPathPrefix is the test socket route; the scenario name is the suffix.
const wsPathPrefix = "/test/ws/"

// logFrame streams one transcript line to the client.
type logFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// resultFrame closes a run: exactly one per connection, always after every
// log frame.
type resultFrame struct {
	Type       string `json:"type"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Screenshot string `json:"screenshot"`
}

// ScenarioRunner runs one scenario to completion, narrating into the sink.
type ScenarioRunner interface {
	Run(ctx context.Context, name string, sink *logsink.Sink) *scenario.Result
}

// WebSocketHandler serves scenario runs over /test/ws/{scenario}. The
// handler goroutine is the only writer on each connection.
type WebSocketHandler struct {
	logger   arbor.ILogger
	runner   ScenarioRunner
	notifier *notify.Notifier
}

// NewWebSocketHandler creates the test socket handler.
func NewWebSocketHandler(runner ScenarioRunner, notifier *notify.Notifier, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		logger:   logger,
		runner:   runner,
		notifier: notifier,
	}
}

// HandleTestSocket upgrades the connection, runs the requested scenario, and
// streams log frames followed by exactly one result frame. Closing the
// connection cancels the run.
func (h *WebSocketHandler) HandleTestSocket(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, wsPathPrefix)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Unknown scenarios get a single result frame and no browser work.
	if !common.IsKnownScenario(name) {
		h.logger.Warn().Str("scenario", name).Msg("Rejected unknown scenario")
		h.writeResult(conn, resultFrame{
			Type:    "result",
			Success: false,
			Message: "unknown scenario: " + name,
		})
		return
	}

	h.logger.Info().Str("scenario", name).Msg("Test run requested")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: the client sends nothing meaningful, but a read error means
	// the connection dropped and the run must be cancelled.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sink := logsink.New()
	resultCh := make(chan *scenario.Result, 1)
	go func() {
		result := h.runner.Run(ctx, name, sink)
		sink.Close()
		resultCh <- result
	}()

	// Drain every log line before the result frame. Write errors are
	// swallowed so the producer is never blocked on a dead connection.
	for line := range sink.Stream() {
		if err := conn.WriteJSON(logFrame{Type: "log", Message: line}); err != nil {
			cancel()
		}
	}

	result := <-resultCh
	h.writeResult(conn, resultFrame{
		Type:       "result",
		Success:    result.Success,
		Message:    result.Message,
		Screenshot: result.Screenshot,
	})

	h.logger.Info().
		Str("scenario", name).
		Str("run_id", result.RunID).
		Bool("success", result.Success).
		Msg("Test run finished")

	if h.notifier != nil {
		// The run context may already be cancelled; notification gets its own.
		if err := h.notifier.Send(context.Background(), notify.RunReport{
			Scenario:   result.Scenario,
			Success:    result.Success,
			Message:    result.Message,
			Screenshot: result.Screenshot,
			Logs:       result.Logs,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
		}); err != nil {
			h.logger.Warn().Err(err).Msg("Notification failed")
		}
	}
}

func (h *WebSocketHandler) writeResult(conn *websocket.Conn, frame resultFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug().Err(err).Msg("Could not deliver result frame")
	}
}
