package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/topicbook/internal/task"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("topicbook/internal/server")

type generateRequest struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// generate accepts a topic and starts a task without waiting for it.
func (s *Server) generate(c echo.Context) error {
	var body generateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id, err := s.tasks.Submit(task.Request{Topic: body.Topic, Description: body.Description})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) snapshot(c echo.Context) error {
	snap, err := s.tasks.Snapshot(c.Param("task_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// status streams the task's progress as server-sent events. Each status
// message becomes one event; the terminal message is followed by [DONE].
func (s *Server) status(c echo.Context) error {
	req := c.Request()
	taskID := c.Param("task_id")
	ctx, span := tracer.Start(req.Context(), "Server.status")
	defer span.End()
	span.SetAttributes(attribute.String("task_id", taskID))

	events, err := s.tasks.Observe(ctx, taskID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(msg string) error {
		if _, err := resp.Write([]byte(sseData(msg))); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := resp.Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(ev.Message); err != nil {
				s.logger.WithError(err).WithField("task_id", taskID).Debug("stream client gone")
				return nil
			}
			if ev.Type == task.EventTerminal {
				span.SetAttributes(attribute.String("state", string(ev.Snapshot.State)))
				_ = send("[DONE]")
				return nil
			}
			ticker.Reset(s.heartbeat)
		}
	}
}

// sseData frames msg as one event, one data field per line.
func sseData(msg string) string {
	var sb strings.Builder
	for _, line := range strings.Split(msg, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
