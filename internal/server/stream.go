package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type planChangeEvent struct {
	PlanID      string   `json:"plan_id"`
	Version     int64    `json:"version"`
	Operation   string   `json:"operation"`
	AttendeeIDs []string `json:"released_attendee_ids"`
	Timestamp   string   `json:"timestamp"`
	Source      string   `json:"source"`
}

type heartbeatEvent struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// handlePlanStream keeps a server-sent event stream open for the caller's plan.
func (h *httpHandler) handlePlanStream(c *gin.Context) {
	planID := c.GetString(planIDContextKey)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, planID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, planChangeEvent{
				PlanID:      message.PlanID,
				Version:     message.Version,
				Operation:   message.Operation,
				AttendeeIDs: message.AttendeeIDs,
				Timestamp:   message.Timestamp.Format(time.RFC3339),
				Source:      realtimeSourceBackend,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, heartbeatEvent{
				Timestamp: tick.UTC().Format(time.RFC3339),
				Source:    realtimeSourceBackend,
			})
			return true
		}
	})
}
