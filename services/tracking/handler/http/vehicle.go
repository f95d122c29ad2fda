package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	"github.com/labstack/echo/v4"
)

// VehicleHandler handles HTTP requests for vehicle positions
type VehicleHandler struct {
	trackingUC tracking.TrackingUC
}

// NewVehicleHandler creates a new vehicle HTTP handler
func NewVehicleHandler(trackingUC tracking.TrackingUC) *VehicleHandler {
	return &VehicleHandler{
		trackingUC: trackingUC,
	}
}

// ListVehicles returns the last known vehicle positions as a JSON array.
// Optional filters: geohash cell prefix, and lat, lng and radius_km
// together for a radius search.
func (h *VehicleHandler) ListVehicles(c echo.Context) error {
	query := models.VehicleQuery{Geohash: c.QueryParam("geohash")}

	lat, lng, radius := c.QueryParam("lat"), c.QueryParam("lng"), c.QueryParam("radius_km")
	if lat != "" || lng != "" || radius != "" {
		near, err := parseGeoQuery(lat, lng, radius)
		if err != nil {
			return utils.BadRequestResponse(c, "lat, lng and radius_km must all be numbers")
		}
		query.Near = near
	}

	vehicles, err := h.trackingUC.ListVehicles(c.Request().Context(), query)
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidQuery) {
			return utils.BadRequestResponse(c, err.Error())
		}
		logger.ErrorCtx(c.Request().Context(), "Failed to list vehicles", logger.Err(err))
		return utils.ErrorResponseHandler(c, http.StatusInternalServerError, "failed to list vehicles")
	}
	if vehicles == nil {
		vehicles = []models.FleetVehicle{}
	}

	return c.JSON(http.StatusOK, vehicles)
}

// GetVehicle returns the last known position of one vehicle
func (h *VehicleHandler) GetVehicle(c echo.Context) error {
	vehicleID := c.Param("id")
	if vehicleID == "" {
		return utils.BadRequestResponse(c, "vehicle_id is required")
	}

	vehicle, err := h.trackingUC.GetVehicle(c.Request().Context(), vehicleID)
	if err != nil {
		if errors.Is(err, tracking.ErrVehicleNotFound) {
			return utils.NotFoundResponse(c, "vehicle not found")
		}
		logger.ErrorCtx(c.Request().Context(), "Failed to get vehicle",
			logger.String("vehicle_id", vehicleID),
			logger.Err(err))
		return utils.ErrorResponseHandler(c, http.StatusInternalServerError, "failed to get vehicle")
	}

	return c.JSON(http.StatusOK, vehicle)
}

func parseGeoQuery(lat, lng, radius string) (*models.GeoQuery, error) {
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, err
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, err
	}
	radiusKm, err := strconv.ParseFloat(radius, 64)
	if err != nil {
		return nil, err
	}
	return &models.GeoQuery{Latitude: latitude, Longitude: longitude, RadiusKm: radiusKm}, nil
}
