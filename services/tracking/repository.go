package tracking

import (
	"context"
	"errors"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// ErrVehicleNotFound is returned when no position is stored for a vehicle
var ErrVehicleNotFound = errors.New("vehicle not found")

// VehicleRepo defines the storage of the last known vehicle positions
type VehicleRepo interface {
	// SaveLocation stores the latest position of a vehicle and returns the
	// stored record
	SaveLocation(ctx context.Context, vehicleID string, location models.DriverLocationPayload) (models.FleetVehicle, error)
	SaveStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) error

	GetVehicle(ctx context.Context, vehicleID string) (models.FleetVehicle, error)
	ListVehicles(ctx context.Context) ([]models.FleetVehicle, error)
	FindNearby(ctx context.Context, center models.GeoQuery) ([]models.FleetVehicle, error)
}
