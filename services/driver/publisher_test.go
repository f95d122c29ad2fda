package driver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
	"github.com/AminderM/Magic-33-sub001/services/driver/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoad string

func (l staticLoad) ActiveLoad() (string, bool) {
	return string(l), l != ""
}

func fixedSample() models.LocationSample {
	return models.LocationSample{
		Latitude:  41.8781,
		Longitude: -87.6298,
		Speed:     models.Float64(36),
		Heading:   models.Float64(90),
		Accuracy:  models.Float64(5),
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func marshal(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestPublisher_Publish(t *testing.T) {
	tests := []struct {
		name     string
		load     LoadContext
		expected string
	}{
		{
			name: "with active load",
			load: staticLoad("LOAD-7"),
			expected: `{"type":"location_update","payload":{"latitude":41.8781,"longitude":-87.6298,
				"speed":36,"heading":90,"accuracy":5,"timestamp":"2024-01-02T03:04:05Z","load_id":"LOAD-7"}}`,
		},
		{
			name: "without load",
			load: staticLoad(""),
			expected: `{"type":"location_update","payload":{"latitude":41.8781,"longitude":-87.6298,
				"speed":36,"heading":90,"accuracy":5,"timestamp":"2024-01-02T03:04:05Z","load_id":null}}`,
		},
		{
			name: "nil load context",
			load: nil,
			expected: `{"type":"location_update","payload":{"latitude":41.8781,"longitude":-87.6298,
				"speed":36,"heading":90,"accuracy":5,"timestamp":"2024-01-02T03:04:05Z","load_id":null}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sender := mocks.NewMockSender(ctrl)
			sender.EXPECT().State().Return(models.StateOpen).AnyTimes()

			var sent interface{}
			sender.EXPECT().Send(gomock.Any()).DoAndReturn(func(v interface{}) error {
				sent = v
				return nil
			})

			p := NewPublisher(sender, tt.load, logger.NewNopLogger())
			ok, err := p.Publish(fixedSample())

			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, tt.expected, marshal(t, sent))
			assert.Equal(t, 1, p.Status().Sent)
		})
	}
}

func TestPublisher_DropsSampleWhenNotOpen(t *testing.T) {
	states := []models.ConnectionState{
		models.StateUninstantiated,
		models.StateConnecting,
		models.StateClosing,
		models.StateClosed,
	}

	for _, state := range states {
		t.Run(string(state), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sender := mocks.NewMockSender(ctrl)
			sender.EXPECT().State().Return(state).AnyTimes()
			// No Send expectation: any write fails the test

			p := NewPublisher(sender, staticLoad("LOAD-7"), logger.NewNopLogger())
			ok, err := p.Publish(fixedSample())

			assert.NoError(t, err)
			assert.False(t, ok)

			st := p.Status()
			assert.Equal(t, 1, st.Dropped)
			assert.Equal(t, 0, st.Sent)
			assert.Equal(t, state.Status(), st.Status)
			assert.Equal(t, 1, p.History().Len())
		})
	}
}

func TestPublisher_SendErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().State().Return(models.StateOpen).AnyTimes()
	sender.EXPECT().Send(gomock.Any()).Return(stream.ErrNotOpen)
	sender.EXPECT().Send(gomock.Any()).Return(errors.New("broken pipe"))

	p := NewPublisher(sender, nil, logger.NewNopLogger())

	// Lost the race with a close: still a silent drop
	ok, err := p.Publish(fixedSample())
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Publish(fixedSample())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, p.Status().Dropped)
}

func TestPublisher_PublishStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)

	var sent interface{}
	sender.EXPECT().Send(gomock.Any()).DoAndReturn(func(v interface{}) error {
		sent = v
		return nil
	})

	signal := 3
	p := NewPublisher(sender, nil, logger.NewNopLogger())
	err := p.PublishStatus(models.StatusUpdatePayload{
		Status:         "on_duty",
		Battery:        models.Float64(0.82),
		SignalStrength: &signal,
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status_update","payload":{"status":"on_duty","battery":0.82,"signal_strength":3}}`,
		marshal(t, sent))
}

func TestLoadStatus(t *testing.T) {
	loads := &memoryLoads{}
	status := LoadStatus(loads)

	got := status()
	assert.Equal(t, "idle", got.Status)
	assert.Nil(t, got.Battery)
	assert.Nil(t, got.SignalStrength)

	loads.SetActiveLoad("LD-3")
	assert.Equal(t, "in_transit", status().Status)

	assert.Equal(t, "idle", LoadStatus(nil)().Status)
}

func TestPublisher_HandleMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().State().Return(models.StateOpen).AnyTimes()

	p := NewPublisher(sender, nil, logger.NewNopLogger())

	_, ok := p.LastAck()
	assert.False(t, ok)

	p.HandleMessage([]byte(`{"type":"location_received","payload":{"timestamp":"2024-01-02T03:04:06Z"}}`))
	ack, ok := p.LastAck()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC), ack.UTC())

	// Malformed frames change nothing
	p.HandleMessage([]byte(`{"type":`))
	p.HandleMessage([]byte(`not json`))
	again, _ := p.LastAck()
	assert.Equal(t, ack, again)

	p.HandleMessage([]byte(`{"type":"error","message":"invalid location"}`))
	assert.Equal(t, "invalid location", p.Status().ServerErr)

	p.HandleMessage([]byte(`{"type":"error","payload":{"code":"invalid_format","message":"bad frame"}}`))
	assert.Equal(t, "bad frame", p.Status().ServerErr)

	// Envelope timestamp is used when the payload has none
	p.HandleMessage([]byte(`{"type":"location_received","timestamp":"2024-01-02T03:05:00Z"}`))
	ack, _ = p.LastAck()
	assert.Equal(t, time.Date(2024, 1, 2, 3, 5, 0, 0, time.UTC), ack.UTC())
}

func TestPublisher_TrackPublishesUntilChannelCloses(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().State().Return(models.StateOpen).AnyTimes()
	sender.EXPECT().Send(gomock.Any()).Return(nil).Times(2)

	p := NewPublisher(sender, nil, logger.NewNopLogger())

	samples := make(chan models.LocationSample, 2)
	samples <- fixedSample()
	samples <- fixedSample()
	close(samples)

	p.Track(context.Background(), samples, nil)

	st := p.Status()
	assert.False(t, st.Tracking)
	assert.Equal(t, 2, st.Sent)
	assert.Len(t, p.History().Recent(), 2)
}

// A driver whose location permission is revoked mid-shift stops emitting
// location updates and sees why.
func TestPublisher_PermissionRevokedScenario(t *testing.T) {
	ctrl := gomock.NewController(t)

	source := mocks.NewMockPositionSource(ctrl)
	source.EXPECT().RequestPermission(gomock.Any()).Return(nil)
	source.EXPECT().CurrentPosition(gomock.Any()).Return(chicago, nil).Times(1)
	source.EXPECT().CurrentPosition(gomock.Any()).Return(models.Position{}, ErrPermissionDenied).Times(1)

	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().State().Return(models.StateOpen).AnyTimes()
	sender.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

	sampler := NewSampler(testSamplerConfig(10*time.Millisecond, 10*time.Millisecond), source, logger.NewNopLogger())
	defer sampler.Stop()
	p := NewPublisher(sender, sampler, logger.NewNopLogger())

	samples, err := sampler.Start(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Track(context.Background(), samples, sampler.Notices())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracking did not end after permission loss")
	}

	st := p.Status()
	assert.False(t, st.Tracking)
	assert.Equal(t, 1, st.Sent)
	assert.Contains(t, st.Notice, "permission denied")
	assert.False(t, sampler.Tracking())
}
