package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/reviewmeter/internal/progress"
)

const progressHeartbeatInterval = 15 * time.Second

type connectedPayload struct {
	SessionID string `json:"sessionId"`
}

// StreamProgress binds the caller to one of their own progress sessions
// and relays its events as server-sent events until the client goes away.
// Unbinding never affects a running job.
func (s *Server) StreamProgress(c *gin.Context) {
	if s.progress == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key, err := progress.SessionKey(principal.SubscriberID, sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	binding, backlog, err := s.progress.Bind(key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer binding.Close()
	bindSessionID(c, sessionID)

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	if err := writeSSE(writer, progress.KindConnected, connectedPayload{SessionID: sessionID}); err != nil {
		return
	}
	for _, event := range backlog {
		if err := writeProgressEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(progressHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-binding.Events():
			if !open {
				return
			}
			if err := writeProgressEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeProgressEvent(w io.Writer, event progress.Event) error {
	if event.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.Seq); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, event.Data)
	return err
}

func writeSSE(w io.Writer, kind progress.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
	return err
}
