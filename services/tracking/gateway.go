package tracking

import (
	"context"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// TrackingGW publishes tracking events to the other server instances
type TrackingGW interface {
	PublishLocation(ctx context.Context, vehicle models.VehicleLocationPayload) error
	PublishStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) error
}
