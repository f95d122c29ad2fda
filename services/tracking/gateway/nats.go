package gateway

import (
	"context"
	"fmt"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	natspkg "github.com/AminderM/Magic-33-sub001/internal/pkg/nats"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
)

type trackingGW struct {
	client *natspkg.Client
	origin string
}

// NewTrackingGW creates a NATS tracking gateway. Events carry origin so the
// publishing instance can skip its own messages. A nil client disables
// publishing for single instance deployments.
func NewTrackingGW(client *natspkg.Client, origin string) tracking.TrackingGW {
	return &trackingGW{
		client: client,
		origin: origin,
	}
}

// PublishLocation publishes a dispatcher location update to the other instances
func (g *trackingGW) PublishLocation(ctx context.Context, vehicle models.VehicleLocationPayload) error {
	if g.client == nil {
		return nil
	}

	event := models.VehicleLocationEvent{
		Origin:    g.origin,
		Vehicle:   vehicle,
		CreatedAt: models.Now(),
	}
	if err := g.client.PublishJSON(constants.SubjectVehicleLocation, event); err != nil {
		return fmt.Errorf("failed to publish vehicle location: %w", err)
	}
	return nil
}

// PublishStatus publishes device telemetry
func (g *trackingGW) PublishStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) error {
	if g.client == nil {
		return nil
	}

	event := models.VehicleStatusEvent{
		Origin:    g.origin,
		VehicleID: vehicleID,
		Status:    status,
		CreatedAt: models.Now(),
	}
	if err := g.client.PublishJSON(constants.SubjectVehicleStatus, event); err != nil {
		return fmt.Errorf("failed to publish vehicle status: %w", err)
	}
	return nil
}
