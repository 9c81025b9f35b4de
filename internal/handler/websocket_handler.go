// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marvelmind-service/internal/model"
	"marvelmind-service/internal/service"
	"marvelmind-service/internal/utils"
)

// WebSocketHandler streams live position fixes and modem events to
// connected clients.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	tracking    *service.TrackingService
	logger      *utils.ServiceLogger
	eventBus    *EventBus
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(tracking *service.TrackingService, eventBus *EventBus, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// In production, implement proper origin checking
			return true
		},
	}

	handler := &WebSocketHandler{
		upgrader:    upgrader,
		connections: NewConnectionManager(),
		tracking:    tracking,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
		eventBus:    eventBus,
	}

	go handler.eventBus.Start()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Stream of every device's fixes
	router.GET("/positions", h.HandlePositionConnection)

	// Stream filtered to one device
	router.GET("/positions/:address", h.HandlePositionConnection)

	// Modem lifecycle events
	router.GET("/events", h.HandleEventConnection)
}

// HandlePositionConnection streams position fixes, optionally filtered
// to one device address.
func (h *WebSocketHandler) HandlePositionConnection(c *gin.Context) {
	var address *uint16
	if raw := c.Param("address"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address must be a 16-bit unsigned integer"})
			return
		}
		addr := uint16(parsed)
		address = &addr
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "positions",
		Address:     address,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Position WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.sendInitialSnapshot(client)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleEventConnection handles modem event WebSocket connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "events",
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	case "snapshot":
		h.sendInitialSnapshot(client)
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// sendInitialSnapshot sends the current device snapshot to a client.
func (h *WebSocketHandler) sendInitialSnapshot(client *Client) {
	views, err := h.tracking.Devices()
	if err != nil {
		h.sendError(client, "modem not connected")
		return
	}

	if client.Address != nil {
		filtered := views[:0]
		for _, v := range views {
			if v.Address == *client.Address {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	h.sendMessage(client, &WebSocketMessage{
		Type: "snapshot",
		Data: map[string]interface{}{
			"devices": views,
		},
		Timestamp: time.Now(),
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	message := &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	}
	h.sendMessage(client, message)
}

// PublishFixes pushes a poll cycle's fixes to position clients and the
// event bus. Implements the tracking service's publisher hook.
func (h *WebSocketHandler) PublishFixes(fixes []*model.PositionFix) {
	for _, fix := range fixes {
		message := &WebSocketMessage{
			Type: "position",
			Data: map[string]interface{}{
				"fix": fix,
			},
			Timestamp: time.Now(),
		}
		h.broadcastToClients(h.connections.GetPositionClients(fix.Address), message)
	}

	h.eventBus.Publish(Event{
		Type:      EventPositionUpdate,
		Source:    "tracking",
		Data:      map[string]interface{}{"count": len(fixes)},
		Timestamp: time.Now(),
	})
}

// BroadcastModemEvent broadcasts modem lifecycle events to event clients.
func (h *WebSocketHandler) BroadcastModemEvent(eventType string, data map[string]interface{}) {
	message := &WebSocketMessage{
		Type: "modem_event",
		Data: map[string]interface{}{
			"event_type": eventType,
			"data":       data,
		},
		Timestamp: time.Now(),
	}

	h.broadcastToClients(h.connections.GetEventClients(), message)

	h.eventBus.Publish(Event{
		Type:      eventType,
		Source:    "modem",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// broadcastToClients broadcasts message to specified clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
