package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "github.com/AminderM/Magic-33-sub001/internal/pkg/http"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(url string) *Fetcher {
	client := httpclient.NewClient(httpclient.Config{
		BaseURL: url,
		APIKey:  "fleet-key",
		Timeout: time.Second,
		Retry:   &retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		Logger:  logger.NewNopLogger(),
	})
	return NewFetcher(client, logger.NewNopLogger())
}

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/vehicles", r.URL.Path)
		assert.Equal(t, "fleet-key", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"vehicle_id":"TRK-1","name":"Truck 1","latitude":41.8781,"longitude":-87.6298,"status":"in_transit","last_update":"2024-05-01T12:00:00Z"},
			{"vehicle_id":"TRK-2","latitude":null,"longitude":-88.0},
			{"vehicle_id":"TRK-3","latitude":40.0},
			{"vehicle_id":"TRK-4","latitude":34.0522,"longitude":-118.2437}
		]`))
	}))
	defer srv.Close()

	vehicles, err := newTestFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	assert.Equal(t, "TRK-1", vehicles[0].VehicleID)
	assert.Equal(t, "Truck 1", vehicles[0].Name)
	require.NotNil(t, vehicles[0].LastUpdate)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), vehicles[0].LastUpdate.UTC())
	assert.Equal(t, "TRK-4", vehicles[1].VehicleID)
}

func TestFetcher_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "not an array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"vehicles":"nope"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			vehicles, err := newTestFetcher(srv.URL).Fetch(context.Background())
			assert.Error(t, err)
			assert.Nil(t, vehicles)
			assert.Contains(t, err.Error(), "failed to fetch vehicles")
		})
	}
}

// staticFetcher serves a fixed list and counts calls
type staticFetcher struct {
	vehicles []models.FleetVehicle
	err      error
	calls    chan struct{}
}

func (f *staticFetcher) Fetch(ctx context.Context) ([]models.FleetVehicle, error) {
	if f.calls != nil {
		select {
		case f.calls <- struct{}{}:
		default:
		}
	}
	return f.vehicles, f.err
}
