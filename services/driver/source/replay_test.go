package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const northRoute = `
name: equator-north
speed_kmh: 60
accuracy: 8
points:
  - {lat: 0, lng: 0}
  - {lat: 1, lng: 0}
`

func TestParseRoute(t *testing.T) {
	route, err := ParseRoute([]byte(northRoute))
	require.NoError(t, err)
	assert.Equal(t, "equator-north", route.Name)
	assert.Len(t, route.Points, 2)

	tests := []struct {
		name string
		yaml string
	}{
		{name: "single point", yaml: "speed_kmh: 10\npoints:\n  - {lat: 0, lng: 0}\n"},
		{name: "no speed", yaml: "points:\n  - {lat: 0, lng: 0}\n  - {lat: 1, lng: 0}\n"},
		{name: "latitude out of range", yaml: "speed_kmh: 10\npoints:\n  - {lat: 95, lng: 0}\n  - {lat: 1, lng: 0}\n"},
		{name: "not yaml", yaml: "points: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoute([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestReplay_CurrentPosition(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		loop    bool
		elapsed time.Duration
		lat     float64
		speed   float64
	}{
		{name: "at start", elapsed: 0, lat: 0, speed: 60 / 3.6},
		{name: "half an hour in", elapsed: 30 * time.Minute, lat: 30 / 111.195, speed: 60 / 3.6},
		{name: "parked at the end", elapsed: 3 * time.Hour, lat: 1, speed: 0},
		{name: "loops back", loop: true, elapsed: 2 * time.Hour, lat: (120 - 111.195) / 111.195, speed: 60 / 3.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := ParseRoute([]byte(northRoute))
			require.NoError(t, err)
			route.Loop = tt.loop

			now := start
			r := NewReplay(route)
			r.now = func() time.Time { return now }
			require.NoError(t, r.RequestPermission(context.Background()))

			now = start.Add(tt.elapsed)
			pos, err := r.CurrentPosition(context.Background())
			require.NoError(t, err)

			assert.InDelta(t, tt.lat, pos.Latitude, 1e-3)
			assert.InDelta(t, 0, pos.Longitude, 1e-9)
			require.NotNil(t, pos.Speed)
			assert.InDelta(t, tt.speed, *pos.Speed, 1e-9)
			require.NotNil(t, pos.Heading)
			assert.InDelta(t, 0, *pos.Heading, 1e-6)
			assert.Equal(t, 8.0, *pos.Accuracy)
			assert.Equal(t, now, pos.Timestamp)
		})
	}
}

func TestReplay_CancelledContext(t *testing.T) {
	route, err := ParseRoute([]byte(northRoute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewReplay(route).CurrentPosition(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
