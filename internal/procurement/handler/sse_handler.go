package handler

import (
	"io"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SSEHandler streams committed procurement changes.
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: 30 * time.Second}
}

// SetHeartbeat 设置心跳间隔
func (h *SSEHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// Stream 订阅采购变更事件
// GET /api/v1/procurement/events?user_id=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	client := &sse.Client{
		ID:     uuid.New().String()[:32],
		UserID: GetUserID(c),
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"client_id": client.ID})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, event.Data)
			return true
		case <-heartbeat.C:
			io.WriteString(w, ": keepalive\n\n")
			return true
		}
	})
}
