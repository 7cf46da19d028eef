package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event types published by the procurement module.
const (
	EventRequisitionUpdate = "requisition_update"
	EventQuotationUpdate   = "quotation_update"
)

// EventRequisitionReviewed goes only to the requestor of the reviewed requisition.
const EventRequisitionReviewed = "requisition_reviewed"

// Event is one Server-Sent Event frame.
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// ChangePayload is the data of every procurement event.
type ChangePayload struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
}

// NewEvent encodes payload as the event data.
func NewEvent(eventType string, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Event{EventType: eventType, Data: string(data)}
}

// Client is a connected subscriber.
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub fans committed changes out to connected clients. Slow clients drop events.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts event to every client without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event",
				zap.String("client_id", client.ID),
				zap.String("event", event.EventType))
		}
	}
}

// SendToUser 给特定用户发送事件（而非广播）
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping user event",
				zap.String("client_id", client.ID))
		}
	}
}
