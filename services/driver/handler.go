package driver

import (
	"errors"
	"net/http"

	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// TrackingView is the part of the publisher the HTTP surface reads
type TrackingView interface {
	Status() PublisherStatus
	History() *History
}

// LoadController sets the load attached to outgoing samples
type LoadController interface {
	LoadContext
	SetActiveLoad(loadID string)
	ClearActiveLoad()
}

// TrackingControl turns tracking on and off and restarts the stream
type TrackingControl interface {
	Enable() error
	Disable()
	Tracking() bool
	Reconnect() error
}

// TrackingResponse reports whether the device is sharing its position
type TrackingResponse struct {
	Tracking bool `json:"tracking"`
}

// LoadRequest is the body of PUT /api/driver/load
type LoadRequest struct {
	LoadID string `json:"load_id" validate:"required"`
}

// LoadResponse reports the active load
type LoadResponse struct {
	LoadID string `json:"load_id,omitempty"`
	Active bool   `json:"active"`
}

// Handler serves the driver device status over HTTP
type Handler struct {
	view     TrackingView
	loads    LoadController
	control  TrackingControl
	validate *validator.Validate
}

// NewHandler creates a handler over view, loads and control
func NewHandler(view TrackingView, loads LoadController, control TrackingControl) *Handler {
	return &Handler{view: view, loads: loads, control: control, validate: validator.New()}
}

// RegisterRoutes registers the driver routes
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/driver")
	g.GET("/status", nrpkg.TraceHandler("driver.status", h.Status))
	g.GET("/history", nrpkg.TraceHandler("driver.history", h.History))
	g.GET("/load", nrpkg.TraceHandler("driver.load", h.GetLoad))
	g.PUT("/load", nrpkg.TraceHandler("driver.load.set", h.SetLoad))
	g.DELETE("/load", nrpkg.TraceHandler("driver.load.clear", h.ClearLoad))
	g.POST("/tracking", nrpkg.TraceHandler("driver.tracking.enable", h.EnableTracking))
	g.DELETE("/tracking", nrpkg.TraceHandler("driver.tracking.disable", h.DisableTracking))
	g.POST("/reconnect", nrpkg.TraceHandler("driver.reconnect", h.Reconnect))
}

// Status returns the tracking summary shown to the driver
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view.Status())
}

// History returns the recent samples, most recent first
func (h *Handler) History(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view.History().Recent())
}

// GetLoad returns the active load
func (h *Handler) GetLoad(c echo.Context) error {
	return c.JSON(http.StatusOK, h.loadResponse())
}

// SetLoad attaches a load to every following sample
func (h *Handler) SetLoad(c echo.Context) error {
	var req LoadRequest
	if err := c.Bind(&req); err != nil {
		return utils.BadRequestResponse(c, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return utils.BadRequestResponse(c, "load_id is required")
	}

	h.loads.SetActiveLoad(req.LoadID)
	return c.JSON(http.StatusOK, h.loadResponse())
}

// ClearLoad stops attaching a load to samples
func (h *Handler) ClearLoad(c echo.Context) error {
	h.loads.ClearActiveLoad()
	return c.JSON(http.StatusOK, h.loadResponse())
}

// EnableTracking starts sharing the device position. A refused permission
// is reported as 403 so the driver can fix it and retry.
func (h *Handler) EnableTracking(c echo.Context) error {
	if err := h.control.Enable(); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return utils.ErrorResponseHandler(c, http.StatusForbidden, "location permission denied")
		}
		return utils.ServiceUnavailableResponse(c, err.Error())
	}
	return c.JSON(http.StatusOK, TrackingResponse{Tracking: h.control.Tracking()})
}

// DisableTracking stops sharing the device position
func (h *Handler) DisableTracking(c echo.Context) error {
	h.control.Disable()
	return c.JSON(http.StatusOK, TrackingResponse{Tracking: h.control.Tracking()})
}

// Reconnect restarts the tracking stream with a fresh attempt budget
func (h *Handler) Reconnect(c echo.Context) error {
	if err := h.control.Reconnect(); err != nil {
		return utils.ServiceUnavailableResponse(c, err.Error())
	}
	return c.JSON(http.StatusAccepted, h.view.Status())
}

func (h *Handler) loadResponse() LoadResponse {
	id, ok := h.loads.ActiveLoad()
	return LoadResponse{LoadID: id, Active: ok}
}
