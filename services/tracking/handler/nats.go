package handler

import (
	"encoding/json"
	"fmt"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	natspkg "github.com/AminderM/Magic-33-sub001/internal/pkg/nats"
	"github.com/nats-io/nats.go"
)

// Broadcaster pushes location updates to the local dispatchers
type Broadcaster interface {
	BroadcastLocation(update models.VehicleLocationPayload)
}

// NATSHandler relays location updates published by other tracking server
// instances to the dispatchers connected here
type NATSHandler struct {
	natsClient *natspkg.Client
	hub        Broadcaster
	origin     string
	subs       []*nats.Subscription
	logger     *logger.ZapLogger
}

// NewNATSHandler creates a new tracking NATS handler
func NewNATSHandler(client *natspkg.Client, hub Broadcaster, origin string, l *logger.ZapLogger) *NATSHandler {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &NATSHandler{
		natsClient: client,
		hub:        hub,
		origin:     origin,
		logger:     l.WithComponent("tracking_nats"),
	}
}

// InitNATSConsumers subscribes to the vehicle location subject
func (h *NATSHandler) InitNATSConsumers() error {
	sub, err := h.natsClient.Subscribe(constants.SubjectVehicleLocation, h.handleLocationEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to vehicle locations: %w", err)
	}
	h.subs = append(h.subs, sub)

	h.logger.Info("Subscribed to vehicle locations",
		logger.String("subject", constants.SubjectVehicleLocation),
		logger.String("origin", h.origin))
	return nil
}

// Close removes every subscription
func (h *NATSHandler) Close() error {
	for _, sub := range h.subs {
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Warn("Failed to unsubscribe", logger.String("subject", sub.Subject), logger.Err(err))
		}
	}
	h.subs = nil
	return nil
}

func (h *NATSHandler) handleLocationEvent(msg *nats.Msg) {
	var event models.VehicleLocationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		h.logger.Warn("Dropping malformed vehicle location event", logger.Err(err))
		return
	}

	// Updates recorded here were already broadcast locally
	if event.Origin == h.origin {
		return
	}
	if event.Vehicle.VehicleID == "" || !event.Vehicle.HasCoordinates() {
		h.logger.Warn("Dropping vehicle location event without position",
			logger.String("origin", event.Origin))
		return
	}

	h.hub.BroadcastLocation(event.Vehicle)
}
