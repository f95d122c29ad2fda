package tracking

import (
	"context"
	"errors"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

var (
	// ErrInvalidLocation is returned for samples outside WGS84 bounds
	ErrInvalidLocation = errors.New("invalid location")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidQuery    = errors.New("invalid vehicle query")
)

// TrackingUC defines the tracking server business logic
type TrackingUC interface {
	// RecordLocation stores a driver sample and returns the update to
	// broadcast to dispatchers
	RecordLocation(ctx context.Context, vehicleID string, location models.DriverLocationPayload) (models.VehicleLocationPayload, error)

	// RecordStatus stores driver telemetry. It returns the update to relay
	// to dispatchers, or nil while the vehicle has no known position.
	RecordStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) (*models.VehicleLocationPayload, error)

	FleetStatus(ctx context.Context) ([]models.FleetVehicle, error)
	ListVehicles(ctx context.Context, query models.VehicleQuery) ([]models.FleetVehicle, error)
	GetVehicle(ctx context.Context, vehicleID string) (models.FleetVehicle, error)
}
