package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsEventBuffer  = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsMessage is one frame sent to the client.
type wsMessage struct {
	Type   string                 `json:"type"` // "event", "result" or "error"
	Event  *orchestrator.Event    `json:"event,omitempty"`
	Result *service.AnalyzeResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// handleAnalyzeWS reads analyze requests and answers each with the stage
// events as they happen followed by the final result.
func (s *Server) handleAnalyzeWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	s.logger.Debug("websocket client connected", "remote", c.ClientIP())

	ctx := c.Request.Context()
	for {
		var req orchestrator.Request
		if err := ws.ReadJSON(&req); err != nil {
			s.logger.Debug("websocket client disconnected", "error", err)
			return
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			if s.send(ws, wsMessage{Type: "error", Error: err.Error()}) != nil {
				return
			}
			continue
		}

		if err := s.streamAnalysis(c, ws, req); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// streamAnalysis runs one analysis. Events are buffered so the orchestrator
// never waits on the socket; if the buffer fills, events are dropped.
func (s *Server) streamAnalysis(c *gin.Context, ws *websocket.Conn, req orchestrator.Request) error {
	events := make(chan orchestrator.Event, wsEventBuffer)
	observer := orchestrator.ObserverFunc(func(e orchestrator.Event) {
		select {
		case events <- e:
		default:
			s.logger.Debug("websocket event dropped", "stage", e.Stage, "outcome", e.Outcome)
		}
	})

	type outcome struct {
		res service.AnalyzeResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer close(events)
		res, err := s.deps.Journal.Analyze(c.Request.Context(), req, observer)
		done <- outcome{res, err}
	}()

	for e := range events {
		if err := s.send(ws, wsMessage{Type: "event", Event: &e}); err != nil {
			// Keep draining so the analysis goroutine can finish.
			for range events {
			}
			return err
		}
	}

	out := <-done
	if out.err != nil {
		return s.send(ws, wsMessage{Type: "error", Error: out.err.Error()})
	}
	return s.send(ws, wsMessage{Type: "result", Result: &out.res})
}

func (s *Server) send(ws *websocket.Conn, msg wsMessage) error {
	if err := ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := ws.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		return err
	}
	return nil
}
