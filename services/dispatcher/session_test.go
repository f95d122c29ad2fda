package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
	"github.com/gorilla/websocket"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// fleetServer is a scripted fleet stream endpoint
type fleetServer struct {
	srv      *httptest.Server
	requests int32 // request_status frames received
	outbound chan string
}

func newFleetServer(t *testing.T, onRequestStatus func(n int32) []string) *fleetServer {
	t.Helper()
	fs := &fleetServer{outbound: make(chan string, 8)}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		inbound := make(chan models.Message)
		go func() {
			defer close(inbound)
			for {
				var msg models.Message
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				inbound <- msg
			}
		}()

		for {
			select {
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				if msg.Type != constants.EventRequestStatus {
					continue
				}
				n := atomic.AddInt32(&fs.requests, 1)
				for _, frame := range onRequestStatus(n) {
					if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
						return
					}
				}
			case frame := <-fs.outbound:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fleetServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + constants.PathFleetStream
}

func testStream(url string) *stream.Manager {
	cfg := stream.DefaultConfig(url)
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.MaxAttempts = 2
	cfg.PingInterval = 0
	cfg.HandshakeTimeout = time.Second
	return stream.NewManager(cfg, logger.NewNopLogger())
}

func runSession(t *testing.T, s *Session) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
}

func vehicleIDs(r *Registry) []string {
	var ids []string
	for _, v := range r.List() {
		ids = append(ids, v.VehicleID)
	}
	return ids
}

// A dispatcher opening the view sees the REST list first, and the
// snapshot that follows replaces it entirely.
func TestSession_ColdStartScenario(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"vehicle_id":"TRK-1","latitude":41.0,"longitude":-87.0},
			{"vehicle_id":"TRK-2","latitude":42.0,"longitude":-88.0},
			{"vehicle_id":"TRK-3","latitude":43.0,"longitude":-89.0}
		]`))
	}))
	defer api.Close()

	release := make(chan struct{})
	fs := newFleetServer(t, func(n int32) []string {
		<-release
		return []string{`{"type":"fleet_status","payload":[
			{"vehicle_id":"TRK-2","name":"Truck 2","latitude":42.5,"longitude":-88.5,"status":"in_transit"},
			{"vehicle_id":"TRK-5","latitude":45.0,"longitude":-91.0},
			{"vehicle_id":"TRK-6","latitude":null,"longitude":-92.0}
		]}`}
	})

	registry := NewRegistry()
	s := NewSession(SessionConfig{FetchTimeout: time.Second}, testStream(fs.url()), registry, newTestFetcher(api.URL), logger.NewNopLogger())
	runSession(t, s)

	require.Eventually(t, func() bool { return registry.Len() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TRK-1", "TRK-2", "TRK-3"}, vehicleIDs(registry))
	_, fetched := s.LastFetch()
	assert.True(t, fetched)

	close(release)

	require.Eventually(t, func() bool {
		_, ok := s.LastSnapshot()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TRK-2", "TRK-5"}, vehicleIDs(registry))

	v, _ := registry.Get("TRK-2")
	assert.Equal(t, 42.5, v.Latitude)
	assert.Equal(t, "Truck 2", v.Name)

	st := s.ConnectionStatus()
	assert.Equal(t, models.StateOpen, st.State)
	assert.Equal(t, "Connected", st.Status)
}

func TestSession_LiveUpdatesAndRefresh(t *testing.T) {
	fs := newFleetServer(t, func(n int32) []string {
		return []string{`{"type":"fleet_status","payload":[{"vehicle_id":"TRK-1","latitude":41.0,"longitude":-87.0,"driver_name":"Sam"}]}`}
	})

	fetcher := &staticFetcher{}
	registry := NewRegistry()
	s := NewSession(SessionConfig{}, testStream(fs.url()), registry, fetcher, logger.NewNopLogger())
	runSession(t, s)

	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	fs.outbound <- `{"type":"location_update","payload":{"vehicle_id":"TRK-1","latitude":41.1,"longitude":-87.1,"speed":80,"heading":45,"timestamp":"2024-05-01T12:00:00Z"}}`
	fs.outbound <- `{"type":"location_update","payload":{"vehicle_id":"TRK-9","latitude":40.0,"longitude":-86.0,"speed":null,"heading":null}}`
	fs.outbound <- `{"type":"location_update","payload":{"vehicle_id":"TRK-8","latitude":null,"longitude":-86.0}}`
	fs.outbound <- `{"type":"error","message":"something went wrong"}`
	fs.outbound <- `not json`

	require.Eventually(t, func() bool { return registry.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	v, _ := registry.Get("TRK-1")
	assert.Equal(t, 41.1, v.Latitude)
	assert.Equal(t, 80.0, *v.Speed)
	assert.Equal(t, "Sam", v.DriverName)
	_, ok := registry.Get("TRK-8")
	assert.False(t, ok)

	mode, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshSnapshot, mode)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fs.requests) == 2 }, 2*time.Second, 5*time.Millisecond)

	// The new snapshot drops TRK-9 again
	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSession_StreamDownFallsBackToFetch(t *testing.T) {
	fetcher := &staticFetcher{
		vehicles: []models.FleetVehicle{fleetVehicle("TRK-1", 41.0, -87.0)},
		calls:    make(chan struct{}, 4),
	}
	registry := NewRegistry()
	s := NewSession(SessionConfig{}, testStream("ws://127.0.0.1:1/api/ws/fleet"), registry, fetcher, logger.NewNopLogger())
	runSession(t, s)

	<-fetcher.calls
	require.Eventually(t, func() bool {
		_, ok := s.LastFetch()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.ConnectionStatus().Exhausted }, 2*time.Second, 5*time.Millisecond)

	st := s.ConnectionStatus()
	assert.Equal(t, models.StateClosed, st.State)
	assert.Equal(t, "Disconnected", st.Status)
	assert.Equal(t, noticeExhausted, st.Notice)

	fetcher.vehicles = append(fetcher.vehicles, fleetVehicle("TRK-2", 42.0, -88.0))
	mode, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshFetch, mode)

	select {
	case <-fetcher.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not fetch")
	}
	require.Eventually(t, func() bool { return registry.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestSession_FetchFailureKeepsRegistry(t *testing.T) {
	fetcher := &staticFetcher{err: errors.New("connection refused"), calls: make(chan struct{}, 4)}
	registry := NewRegistry()
	registry.ApplyUpdate(update("TRK-1", 41.0, -87.0, nil))

	s := NewSession(SessionConfig{}, testStream("ws://127.0.0.1:1/api/ws/fleet"), registry, fetcher, logger.NewNopLogger())
	runSession(t, s)

	<-fetcher.calls
	require.Eventually(t, func() bool { return s.ConnectionStatus().Notice == noticeFetchFailed }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, registry.Len())
	_, ok := s.LastFetch()
	assert.False(t, ok)
}

func TestSession_PollInterval(t *testing.T) {
	fetcher := &staticFetcher{calls: make(chan struct{}, 8)}
	s := NewSession(SessionConfig{PollInterval: 20 * time.Millisecond}, testStream("ws://127.0.0.1:1/api/ws/fleet"), nil, fetcher, logger.NewNopLogger())
	runSession(t, s)

	for i := 0; i < 3; i++ {
		select {
		case <-fetcher.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("poll %d did not fetch", i)
		}
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := NewSession(SessionConfig{}, testStream("ws://127.0.0.1:1/api/ws/fleet"), nil, &staticFetcher{}, logger.NewNopLogger())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.ConnectionStatus().State != models.StateUninstantiated }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.Reconnect(), ErrSessionClosed)
	assert.ErrorIs(t, s.Run(context.Background()), ErrSessionClosed)
}

func TestSession_SnapshotWithLooseTimestamps(t *testing.T) {
	fs := newFleetServer(t, func(n int32) []string {
		return []string{`{"type":"fleet_status","payload":[
			{"vehicle_id":"TRK-1","latitude":41.0,"longitude":-87.0,"last_update":"2024-05-01T12:00:00"},
			{"vehicle_id":"TRK-2","latitude":42.0,"longitude":-88.0,"last_update":1714564800000},
			{"vehicle_id":"TRK-3","latitude":43.0,"longitude":-89.0,"last_update":"not a time"}
		]}`}
	})

	registry := NewRegistry()
	s := NewSession(SessionConfig{}, testStream(fs.url()), registry, &staticFetcher{}, logger.NewNopLogger())
	before := models.Now()
	runSession(t, s)

	require.Eventually(t, func() bool { return registry.Len() == 3 }, 2*time.Second, 5*time.Millisecond)

	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v, _ := registry.Get("TRK-1")
	assert.True(t, want.Equal(v.Timestamp), "zone-less timestamp read as UTC")
	v, _ = registry.Get("TRK-2")
	assert.True(t, want.Equal(v.Timestamp), "unix millis")
	v, _ = registry.Get("TRK-3")
	assert.False(t, v.Timestamp.Before(before), "unreadable timestamp falls back to arrival time")
}

func TestSession_FleetStatusNeedsVehicleList(t *testing.T) {
	fs := newFleetServer(t, func(n int32) []string {
		return []string{`{"type":"fleet_status","payload":[
			{"vehicle_id":"TRK-1","latitude":41.0,"longitude":-87.0},
			{"vehicle_id":"TRK-2","latitude":42.0,"longitude":-88.0}
		]}`}
	})

	registry := NewRegistry()
	s := NewSession(SessionConfig{}, testStream(fs.url()), registry, &staticFetcher{}, logger.NewNopLogger())
	runSession(t, s)
	require.Eventually(t, func() bool { return registry.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	fs.outbound <- `{"type":"fleet_status","payload":null}`
	fs.outbound <- `{"type":"fleet_status"}`
	fs.outbound <- `{"type":"fleet_status","payload":{"vehicle_id":"TRK-9"}}`
	// Frames are handled in order, so this update lands after the ones above
	fs.outbound <- `{"type":"location_update","payload":{"vehicle_id":"TRK-1","latitude":41.5,"longitude":-87.5}}`

	require.Eventually(t, func() bool {
		v, _ := registry.Get("TRK-1")
		return v.Latitude == 41.5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TRK-1", "TRK-2"}, vehicleIDs(registry))

	fs.outbound <- `{"type":"fleet_status","payload":[]}`
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSession_NoPollingWhileOpen(t *testing.T) {
	fs := newFleetServer(t, func(n int32) []string {
		return []string{`{"type":"fleet_status","payload":[{"vehicle_id":"TRK-1","latitude":41.0,"longitude":-87.0}]}`}
	})

	fetcher := &staticFetcher{calls: make(chan struct{}, 16)}
	s := NewSession(SessionConfig{PollInterval: 10 * time.Millisecond}, testStream(fs.url()), nil, fetcher, logger.NewNopLogger())
	runSession(t, s)

	require.Eventually(t, func() bool {
		_, ok := s.LastSnapshot()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, models.StateOpen, s.ConnectionStatus().State)

	// Let a fetch started while connecting report in, then count anew
	time.Sleep(20 * time.Millisecond)
	for len(fetcher.calls) > 0 {
		<-fetcher.calls
	}

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fetcher.calls, "fetched while the stream was open")
}

// tracedFetcher records whether each fetch ran inside a transaction
type tracedFetcher struct {
	traced chan bool
}

func (f *tracedFetcher) Fetch(ctx context.Context) ([]models.FleetVehicle, error) {
	f.traced <- newrelic.FromContext(ctx) != nil
	return nil, nil
}

func TestSession_FetchRunsInBackgroundTransaction(t *testing.T) {
	app, err := newrelic.NewApplication(newrelic.ConfigAppName("dispatcher-test"), newrelic.ConfigEnabled(false))
	require.NoError(t, err)

	fetcher := &tracedFetcher{traced: make(chan bool, 4)}
	s := NewSession(SessionConfig{NewRelic: app}, testStream("ws://127.0.0.1:1/api/ws/fleet"), nil, fetcher, logger.NewNopLogger())
	runSession(t, s)

	select {
	case traced := <-fetcher.traced:
		assert.True(t, traced)
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap fetch did not run")
	}
}
