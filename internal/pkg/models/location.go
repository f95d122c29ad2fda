package models

import (
	"math"
	"time"
)

// metersPerSecondToKmh converts device speeds to the km/h used on the wire
const metersPerSecondToKmh = 3.6

// Position is a raw fix as reported by a device position source.
// Speed is in meters per second; nil fields are unavailable on the device.
type Position struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Accuracy  *float64
	Timestamp time.Time
}

// LocationSample represents one captured position of the driver's device
type LocationSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed"`    // km/h
	Heading   *float64  `json:"heading"`  // degrees, [0, 360)
	Accuracy  *float64  `json:"accuracy"` // meters
	Timestamp time.Time `json:"timestamp"`
}

// NewLocationSample builds a sample from a device fix. The capture time is
// the fix time when the device reports one, otherwise now.
func NewLocationSample(p Position) LocationSample {
	sample := LocationSample{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: p.Timestamp,
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = Now()
	}

	if p.Speed != nil && isFinite(*p.Speed) && *p.Speed >= 0 {
		sample.Speed = Float64(*p.Speed * metersPerSecondToKmh)
	}
	if p.Heading != nil && isFinite(*p.Heading) {
		heading := math.Mod(*p.Heading, 360)
		if heading < 0 {
			heading += 360
		}
		sample.Heading = Float64(heading)
	}
	if p.Accuracy != nil && isFinite(*p.Accuracy) && *p.Accuracy >= 0 {
		sample.Accuracy = Float64(*p.Accuracy)
	}

	return sample
}

// DriverLocationPayload is the payload of a location_update sent by a driver
type DriverLocationPayload struct {
	LocationSample
	LoadID *string `json:"load_id"`
}

// StatusUpdatePayload is device telemetry sent by a driver
type StatusUpdatePayload struct {
	Status         string   `json:"status"`
	Battery        *float64 `json:"battery"`
	SignalStrength *int     `json:"signal_strength"`
}

// ValidCoordinates reports whether lat/lng are finite and inside WGS84 bounds
func ValidCoordinates(lat, lng float64) bool {
	return isFinite(lat) && isFinite(lng) &&
		lat >= -90 && lat <= 90 &&
		lng >= -180 && lng <= 180
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// String returns a pointer to v
func String(v string) *string {
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
