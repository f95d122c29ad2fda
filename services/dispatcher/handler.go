package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/labstack/echo/v4"
)

// FleetView is the part of a session the HTTP surface reads and drives
type FleetView interface {
	Registry() *Registry
	ConnectionStatus() models.ConnectionStatus
	LastSnapshot() (time.Time, bool)
	LastFetch() (time.Time, bool)
	Refresh(ctx context.Context) (RefreshMode, error)
	Reconnect() error
}

// ConnectionResponse is the body of GET /api/fleet/connection
type ConnectionResponse struct {
	models.ConnectionStatus
	Vehicles     int        `json:"vehicles"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
	LastFetch    *time.Time `json:"last_fetch,omitempty"`
}

// Handler serves the dispatcher's fleet view over HTTP
type Handler struct {
	view FleetView
}

// NewHandler creates a handler over view
func NewHandler(view FleetView) *Handler {
	return &Handler{view: view}
}

// RegisterRoutes registers the fleet routes
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	fleet := e.Group("/api/fleet")
	fleet.GET("/vehicles", nrpkg.TraceHandler("fleet.vehicles", h.ListVehicles))
	fleet.GET("/vehicles/:id", nrpkg.TraceHandler("fleet.vehicle", h.GetVehicle))
	fleet.GET("/connection", nrpkg.TraceHandler("fleet.connection", h.Connection))
	fleet.POST("/refresh", nrpkg.TraceHandler("fleet.refresh", h.Refresh))
	fleet.POST("/reconnect", nrpkg.TraceHandler("fleet.reconnect", h.Reconnect))
}

// ListVehicles returns every vehicle with a known position
func (h *Handler) ListVehicles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view.Registry().List())
}

// GetVehicle returns one vehicle
func (h *Handler) GetVehicle(c echo.Context) error {
	v, ok := h.view.Registry().Get(c.Param("id"))
	if !ok {
		return utils.NotFoundResponse(c, "vehicle not found")
	}
	return c.JSON(http.StatusOK, v)
}

// Connection returns the stream status
func (h *Handler) Connection(c echo.Context) error {
	resp := ConnectionResponse{
		ConnectionStatus: h.view.ConnectionStatus(),
		Vehicles:         h.view.Registry().Len(),
	}
	if ts, ok := h.view.LastSnapshot(); ok {
		resp.LastSnapshot = &ts
	}
	if ts, ok := h.view.LastFetch(); ok {
		resp.LastFetch = &ts
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh asks for fresh fleet data
func (h *Handler) Refresh(c echo.Context) error {
	mode, err := h.view.Refresh(c.Request().Context())
	if err != nil {
		logger.WarnCtx(c.Request().Context(), "Fleet refresh failed", logger.Err(err))
		if errors.Is(err, ErrSessionClosed) {
			return utils.ServiceUnavailableResponse(c, "fleet view is closed")
		}
		return utils.ErrorResponseHandler(c, http.StatusInternalServerError, "refresh failed")
	}
	return utils.SuccessResponse(c, http.StatusAccepted, "Refresh requested", map[string]string{"mode": string(mode)})
}

// Reconnect starts a new stream connection cycle
func (h *Handler) Reconnect(c echo.Context) error {
	if err := h.view.Reconnect(); err != nil {
		logger.WarnCtx(c.Request().Context(), "Fleet reconnect failed", logger.Err(err))
		return utils.ServiceUnavailableResponse(c, "reconnect failed")
	}
	return utils.SuccessResponse(c, http.StatusAccepted, "Reconnect requested", h.view.ConnectionStatus())
}
