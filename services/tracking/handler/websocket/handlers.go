package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/requestcontext"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	"github.com/labstack/echo/v4"
)

// HandleFleet serves a dispatcher socket. Each request_status is answered
// with a fleet_status snapshot; location updates are pushed as they arrive.
func (h *Hub) HandleFleet(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	cl := &client{id: requestcontext.FromEchoContext(c), conn: conn}
	h.addFleet(cl)
	defer h.removeFleet(cl)

	h.logger.Info("Dispatcher connected", logger.String("client_id", cl.id))
	h.readLoop(cl, func(data []byte) {
		h.handleFleetMessage(c.Request().Context(), cl, data)
	})
	h.logger.Info("Dispatcher disconnected", logger.String("client_id", cl.id))
	return nil
}

// HandleVehicle serves the socket of one driver device
func (h *Hub) HandleVehicle(c echo.Context) error {
	vehicleID := c.Param("id")
	if vehicleID == "" {
		return utils.BadRequestResponse(c, "vehicle_id is required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	cl := &client{id: vehicleID, conn: conn}
	h.addDriver(cl)
	defer h.removeDriver(cl)

	h.logger.Info("Driver connected", logger.String("vehicle_id", vehicleID))
	h.readLoop(cl, func(data []byte) {
		h.handleDriverMessage(c.Request().Context(), cl, data)
	})
	h.logger.Info("Driver disconnected", logger.String("vehicle_id", vehicleID))
	return nil
}

func (h *Hub) handleFleetMessage(ctx context.Context, cl *client, data []byte) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(cl, constants.ErrorInvalidFormat, "Invalid message format")
		return
	}

	switch msg.Type {
	case constants.EventRequestStatus:
		vehicles, err := h.uc.FleetStatus(ctx)
		if err != nil {
			h.logger.Error("Failed to load fleet status", logger.Err(err))
			h.sendError(cl, constants.ErrorInternalError, "Failed to load fleet status")
			return
		}
		if vehicles == nil {
			vehicles = []models.FleetVehicle{}
		}
		if err := h.sendMessage(cl, constants.EventFleetStatus, vehicles); err != nil {
			h.logger.Warn("Failed to send fleet status", logger.String("client_id", cl.id), logger.Err(err))
		}
	default:
		h.sendError(cl, constants.ErrorUnknownEvent, "Unknown event type")
	}
}

func (h *Hub) handleDriverMessage(ctx context.Context, cl *client, data []byte) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(cl, constants.ErrorInvalidFormat, "Invalid message format")
		return
	}

	switch msg.Type {
	case constants.EventLocationUpdate:
		h.handleLocationUpdate(ctx, cl, msg.Payload)
	case constants.EventStatusUpdate:
		h.handleStatusUpdate(ctx, cl, msg.Payload)
	case constants.EventRequestStatus:
		// Sent by every client on open; drivers have nothing to receive
		h.logger.Debug("Ignoring request_status from driver", logger.String("vehicle_id", cl.id))
	default:
		h.sendError(cl, constants.ErrorUnknownEvent, "Unknown event type")
	}
}

func (h *Hub) handleLocationUpdate(ctx context.Context, cl *client, payload json.RawMessage) {
	var required struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	var location models.DriverLocationPayload
	if err := json.Unmarshal(payload, &required); err != nil {
		h.sendError(cl, constants.ErrorInvalidFormat, "Invalid location format")
		return
	}
	if required.Latitude == nil || required.Longitude == nil {
		h.sendError(cl, constants.ErrorInvalidLocation, "latitude and longitude are required")
		return
	}
	if err := json.Unmarshal(payload, &location); err != nil {
		h.sendError(cl, constants.ErrorInvalidFormat, "Invalid location format")
		return
	}

	update, err := h.uc.RecordLocation(ctx, cl.id, location)
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidLocation) {
			h.sendError(cl, constants.ErrorInvalidLocation, err.Error())
			return
		}
		h.logger.Error("Failed to record location",
			logger.String("vehicle_id", cl.id),
			logger.Err(err))
		h.sendError(cl, constants.ErrorInternalError, "Failed to store location")
		return
	}

	ack := models.LocationReceivedPayload{Timestamp: models.Now()}
	if update.Timestamp != nil {
		ack.Timestamp = *update.Timestamp
	}
	if err := h.sendMessage(cl, constants.EventLocationReceived, ack); err != nil {
		h.logger.Warn("Failed to acknowledge location", logger.String("vehicle_id", cl.id), logger.Err(err))
	}

	h.BroadcastLocation(update)
}

func (h *Hub) handleStatusUpdate(ctx context.Context, cl *client, payload json.RawMessage) {
	var status models.StatusUpdatePayload
	if err := json.Unmarshal(payload, &status); err != nil {
		h.sendError(cl, constants.ErrorInvalidFormat, "Invalid status format")
		return
	}

	update, err := h.uc.RecordStatus(ctx, cl.id, status)
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidStatus) {
			h.sendError(cl, constants.ErrorValidationFailed, err.Error())
			return
		}
		h.logger.Error("Failed to record status",
			logger.String("vehicle_id", cl.id),
			logger.Err(err))
		h.sendError(cl, constants.ErrorInternalError, "Failed to store status")
		return
	}

	if update != nil {
		h.BroadcastLocation(*update)
	}
}
