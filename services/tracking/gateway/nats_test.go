package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	natspkg "github.com/AminderM/Magic-33-sub001/internal/pkg/nats"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runServer(t *testing.T) (*natspkg.Client, string) {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	client, err := natspkg.NewClient(srv.ClientURL(), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, srv.ClientURL()
}

// subscribe listens on subject from a separate connection, as a peer
// instance would
func subscribe(t *testing.T, url, subject string) chan *nats.Msg {
	t.Helper()
	conn, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	ch := make(chan *nats.Msg, 4)
	_, err = conn.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())
	return ch
}

func receive(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishLocation(t *testing.T) {
	client, url := runServer(t)
	ch := subscribe(t, url, constants.SubjectVehicleLocation)

	gw := NewTrackingGW(client, "instance-a")
	err := gw.PublishLocation(context.Background(), models.VehicleLocationPayload{
		VehicleID: "TRK-1",
		Latitude:  models.Float64(41.0),
		Longitude: models.Float64(-87.0),
		Status:    models.String("in_transit"),
	})
	require.NoError(t, err)

	var event models.VehicleLocationEvent
	require.NoError(t, json.Unmarshal(receive(t, ch).Data, &event))
	assert.Equal(t, "instance-a", event.Origin)
	assert.Equal(t, "TRK-1", event.Vehicle.VehicleID)
	assert.Equal(t, 41.0, *event.Vehicle.Latitude)
	assert.Equal(t, "in_transit", *event.Vehicle.Status)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestPublishStatus(t *testing.T) {
	client, url := runServer(t)
	ch := subscribe(t, url, constants.SubjectVehicleStatus)

	gw := NewTrackingGW(client, "instance-a")
	require.NoError(t, gw.PublishStatus(context.Background(), "TRK-1", models.StatusUpdatePayload{
		Status:  "idle",
		Battery: models.Float64(0.5),
	}))

	var event models.VehicleStatusEvent
	require.NoError(t, json.Unmarshal(receive(t, ch).Data, &event))
	assert.Equal(t, "TRK-1", event.VehicleID)
	assert.Equal(t, "idle", event.Status.Status)
	assert.Equal(t, 0.5, *event.Status.Battery)
}

func TestNilClientDisablesPublishing(t *testing.T) {
	gw := NewTrackingGW(nil, "instance-a")
	assert.NoError(t, gw.PublishLocation(context.Background(), models.VehicleLocationPayload{VehicleID: "TRK-1"}))
	assert.NoError(t, gw.PublishStatus(context.Background(), "TRK-1", models.StatusUpdatePayload{Status: "idle"}))
}
