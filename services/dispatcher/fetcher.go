package dispatcher

import (
	"context"
	"fmt"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	httpclient "github.com/AminderM/Magic-33-sub001/internal/pkg/http"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// VehicleFetcher loads the vehicle list over REST
type VehicleFetcher interface {
	Fetch(ctx context.Context) ([]models.FleetVehicle, error)
}

// Fetcher reads GET /api/vehicles from the fleet API
type Fetcher struct {
	client *httpclient.Client
	logger *logger.ZapLogger
}

// NewFetcher creates a fetcher over client
func NewFetcher(client *httpclient.Client, l *logger.ZapLogger) *Fetcher {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Fetcher{client: client, logger: l.WithComponent("fallback_fetcher")}
}

// NewFetcherFromConfig creates a fetcher for the configured fleet API
func NewFetcherFromConfig(cfg models.FleetConfig, l *logger.ZapLogger) *Fetcher {
	client := httpclient.NewClient(httpclient.Config{
		BaseURL: cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.FetchTimeout,
		Logger:  l,
	})
	return NewFetcher(client, l)
}

// Fetch returns the vehicles that have both coordinates. Entries without
// them are dropped.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.FleetVehicle, error) {
	var records []models.FleetVehicle
	if err := f.client.GetJSON(ctx, constants.PathVehicles, &records); err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}

	out := make([]models.FleetVehicle, 0, len(records))
	for _, v := range records {
		if v.VehicleID == "" || !v.HasCoordinates() {
			continue
		}
		out = append(out, v)
	}

	if dropped := len(records) - len(out); dropped > 0 {
		f.logger.Debug("Dropped vehicles without coordinates",
			logger.Int("fetched", len(records)),
			logger.Int("dropped", dropped))
	}
	return out, nil
}
