package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	"github.com/go-playground/validator/v10"
)

var _ tracking.TrackingUC = (*TrackingUC)(nil)

// TrackingUC implements the tracking.TrackingUC interface
type TrackingUC struct {
	repo     tracking.VehicleRepo
	gw       tracking.TrackingGW
	validate *validator.Validate
	logger   *logger.ZapLogger
}

// NewTrackingUC creates a new tracking use case
func NewTrackingUC(repo tracking.VehicleRepo, gw tracking.TrackingGW, l *logger.ZapLogger) *TrackingUC {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &TrackingUC{
		repo:     repo,
		gw:       gw,
		validate: validator.New(),
		logger:   l.WithComponent("tracking_usecase"),
	}
}

// RecordLocation stores a driver sample, publishes it to the other
// instances and returns the dispatcher update
func (uc *TrackingUC) RecordLocation(ctx context.Context, vehicleID string, location models.DriverLocationPayload) (models.VehicleLocationPayload, error) {
	if vehicleID == "" {
		return models.VehicleLocationPayload{}, errors.New("vehicle_id is required")
	}
	if !models.ValidCoordinates(location.Latitude, location.Longitude) {
		return models.VehicleLocationPayload{}, fmt.Errorf("%w: latitude %v longitude %v",
			tracking.ErrInvalidLocation, location.Latitude, location.Longitude)
	}
	if location.Timestamp.IsZero() {
		location.Timestamp = models.Now()
	}

	stored, err := uc.repo.SaveLocation(ctx, vehicleID, location)
	if err != nil {
		return models.VehicleLocationPayload{}, err
	}

	update := toUpdate(stored)
	if err := uc.gw.PublishLocation(ctx, update); err != nil {
		// Local dispatchers still get the update
		uc.logger.Warn("Failed to publish vehicle location",
			logger.String("vehicle_id", vehicleID),
			logger.Err(err))
	}
	return update, nil
}

// RecordStatus stores device telemetry and returns the location update
// that relays the new status, or nil while no position is known
func (uc *TrackingUC) RecordStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) (*models.VehicleLocationPayload, error) {
	if vehicleID == "" {
		return nil, errors.New("vehicle_id is required")
	}
	if status.Status == "" {
		return nil, fmt.Errorf("%w: status is required", tracking.ErrInvalidStatus)
	}

	if err := uc.repo.SaveStatus(ctx, vehicleID, status); err != nil {
		return nil, err
	}
	if err := uc.gw.PublishStatus(ctx, vehicleID, status); err != nil {
		uc.logger.Warn("Failed to publish vehicle status",
			logger.String("vehicle_id", vehicleID),
			logger.Err(err))
	}

	stored, err := uc.repo.GetVehicle(ctx, vehicleID)
	if errors.Is(err, tracking.ErrVehicleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	update := toUpdate(stored)
	if err := uc.gw.PublishLocation(ctx, update); err != nil {
		uc.logger.Warn("Failed to publish vehicle location",
			logger.String("vehicle_id", vehicleID),
			logger.Err(err))
	}
	return &update, nil
}

// FleetStatus returns the snapshot sent in fleet_status frames
func (uc *TrackingUC) FleetStatus(ctx context.Context) ([]models.FleetVehicle, error) {
	return uc.repo.ListVehicles(ctx)
}

// ListVehicles returns the vehicles matching query. A radius query is
// served nearest first, the full list by vehicle id.
func (uc *TrackingUC) ListVehicles(ctx context.Context, query models.VehicleQuery) ([]models.FleetVehicle, error) {
	if query.Geohash != "" && !utils.ValidGeohash(query.Geohash) {
		return nil, fmt.Errorf("%w: bad geohash %q", tracking.ErrInvalidQuery, query.Geohash)
	}

	var (
		vehicles []models.FleetVehicle
		err      error
	)
	if query.Near != nil {
		if verr := uc.validate.Struct(query.Near); verr != nil {
			return nil, fmt.Errorf("%w: %v", tracking.ErrInvalidQuery, verr)
		}
		vehicles, err = uc.repo.FindNearby(ctx, *query.Near)
	} else {
		vehicles, err = uc.repo.ListVehicles(ctx)
	}
	if err != nil {
		return nil, err
	}

	if query.Geohash == "" {
		return vehicles, nil
	}
	filtered := make([]models.FleetVehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if utils.InCell(utils.GeoPoint{Latitude: *v.Latitude, Longitude: *v.Longitude}, query.Geohash) {
			filtered = append(filtered, v)
		}
	}
	return filtered, nil
}

// GetVehicle returns one vehicle
func (uc *TrackingUC) GetVehicle(ctx context.Context, vehicleID string) (models.FleetVehicle, error) {
	return uc.repo.GetVehicle(ctx, vehicleID)
}

// toUpdate builds the dispatcher update of a stored vehicle. Enrichment
// fields are only set when stored.
func toUpdate(v models.FleetVehicle) models.VehicleLocationPayload {
	return models.VehicleLocationPayload{
		VehicleID:  v.VehicleID,
		Latitude:   v.Latitude,
		Longitude:  v.Longitude,
		Speed:      v.Speed,
		Heading:    v.Heading,
		Timestamp:  v.LastUpdate,
		Name:       optional(v.Name),
		LoadNumber: optional(v.LoadNumber),
		Status:     optional(v.Status),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
