package handler

import (
	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/middleware"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	httpHandler "github.com/AminderM/Magic-33-sub001/services/tracking/handler/http"
	wsHandler "github.com/AminderM/Magic-33-sub001/services/tracking/handler/websocket"
	"github.com/labstack/echo/v4"
)

// HTTPHandler combines the REST and websocket handlers of the tracking server
type HTTPHandler struct {
	vehicleHTTP *httpHandler.VehicleHandler
	hub         *wsHandler.Hub
	apiKeys     []string
}

// NewHTTPHandler creates a new combined handler
func NewHTTPHandler(trackingUC tracking.TrackingUC, hub *wsHandler.Hub, apiKeys []string) *HTTPHandler {
	return &HTTPHandler{
		vehicleHTTP: httpHandler.NewVehicleHandler(trackingUC),
		hub:         hub,
		apiKeys:     apiKeys,
	}
}

// RegisterRoutes registers the stream endpoints and the vehicle REST API
func (h *HTTPHandler) RegisterRoutes(e *echo.Echo) {
	e.GET(constants.PathFleetStream, h.hub.HandleFleet)
	e.GET("/api/ws/vehicles/:id", h.hub.HandleVehicle)

	vehicles := e.Group(constants.PathVehicles, middleware.ValidateAPIKey(h.apiKeys...))
	vehicles.GET("", nrpkg.TraceHandler("ListVehicles", h.vehicleHTTP.ListVehicles))
	vehicles.GET("/:id", nrpkg.TraceHandler("GetVehicle", h.vehicleHTTP.GetVehicle))
}
