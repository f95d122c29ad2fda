package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// client is one connected socket. Writes are serialized per connection.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Hub manages the driver and dispatcher sockets of one tracking server
type Hub struct {
	sync.RWMutex
	uc       tracking.TrackingUC
	upgrader websocket.Upgrader
	fleet    map[*client]struct{}
	drivers  map[string]*client
	logger   *logger.ZapLogger
}

// NewHub creates a new websocket hub
func NewHub(uc tracking.TrackingUC, l *logger.ZapLogger) *Hub {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Hub{
		uc: uc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		fleet:   make(map[*client]struct{}),
		drivers: make(map[string]*client),
		logger:  l.WithComponent("tracking_hub"),
	}
}

// BroadcastLocation sends a location_update to every dispatcher. A
// dispatcher that cannot be written to is disconnected.
func (h *Hub) BroadcastLocation(update models.VehicleLocationPayload) {
	msg, err := models.NewMessage(constants.EventLocationUpdate, update)
	if err != nil {
		h.logger.Error("Failed to build location update", logger.Err(err))
		return
	}

	h.RLock()
	clients := make([]*client, 0, len(h.fleet))
	for c := range h.fleet {
		clients = append(clients, c)
	}
	h.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			h.logger.Warn("Dropping dispatcher after failed write",
				logger.String("client_id", c.id),
				logger.Err(err))
			c.conn.Close()
		}
	}
}

// FleetClients returns the number of connected dispatchers
func (h *Hub) FleetClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.fleet)
}

// Drivers returns the number of connected drivers
func (h *Hub) Drivers() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.drivers)
}

// Close disconnects every socket
func (h *Hub) Close() error {
	h.Lock()
	defer h.Unlock()
	for c := range h.fleet {
		c.conn.Close()
	}
	for _, c := range h.drivers {
		c.conn.Close()
	}
	return nil
}

func (h *Hub) addFleet(c *client) {
	h.Lock()
	defer h.Unlock()
	h.fleet[c] = struct{}{}
}

func (h *Hub) removeFleet(c *client) {
	h.Lock()
	defer h.Unlock()
	delete(h.fleet, c)
}

// addDriver registers the socket of a vehicle, closing the previous one
func (h *Hub) addDriver(c *client) {
	h.Lock()
	prev, exists := h.drivers[c.id]
	h.drivers[c.id] = c
	h.Unlock()

	if exists {
		h.logger.Info("Replacing driver connection", logger.String("vehicle_id", c.id))
		prev.conn.Close()
	}
}

func (h *Hub) removeDriver(c *client) {
	h.Lock()
	defer h.Unlock()
	if h.drivers[c.id] == c {
		delete(h.drivers, c.id)
	}
}

// sendError sends an error frame carrying the message at the envelope
// level and the code in the payload
func (h *Hub) sendError(c *client, code, message string) {
	msg, err := models.NewMessage(constants.EventError, models.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	msg.Message = message
	if err := c.send(msg); err != nil {
		h.logger.Warn("Failed to send error frame",
			logger.String("client_id", c.id),
			logger.String("code", code),
			logger.Err(err))
	}
}

func (h *Hub) sendMessage(c *client, msgType string, payload interface{}) error {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	if err := c.send(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}
	return nil
}

// readLoop reads frames until the socket fails
func (h *Hub) readLoop(c *client, handle func(data []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error",
					logger.String("client_id", c.id),
					logger.Err(err))
			}
			return
		}
		handle(data)
	}
}
