package models

import (
	"encoding/json"
	"time"
)

// VehicleState is the last known state of one vehicle as shown to dispatchers
type VehicleState struct {
	VehicleID   string    `json:"vehicle_id"`
	Name        string    `json:"name,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Speed       *float64  `json:"speed"`
	Heading     *float64  `json:"heading"`
	Timestamp   time.Time `json:"timestamp"`
	DriverName  string    `json:"driver_name,omitempty"`
	DriverPhone string    `json:"driver_phone,omitempty"`
	LoadNumber  string    `json:"load_number,omitempty"`
	AssetNumber string    `json:"asset_number,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// VehicleLocationPayload is the payload of a location_update sent to
// dispatchers. Enrichment fields are only present when the server has them.
type VehicleLocationPayload struct {
	VehicleID   string     `json:"vehicle_id"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	Speed       *float64   `json:"speed"`
	Heading     *float64   `json:"heading"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Name        *string    `json:"name,omitempty"`
	DriverName  *string    `json:"driver_name,omitempty"`
	DriverPhone *string    `json:"driver_phone,omitempty"`
	LoadNumber  *string    `json:"load_number,omitempty"`
	AssetNumber *string    `json:"asset_number,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// HasCoordinates reports whether both coordinates are present
func (p VehicleLocationPayload) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// UnmarshalJSON decodes the payload with a lenient timestamp. A timestamp
// that cannot be read is left nil so arrival time applies.
func (p *VehicleLocationPayload) UnmarshalJSON(data []byte) error {
	type plain VehicleLocationPayload
	aux := struct {
		*plain
		Timestamp json.RawMessage `json:"timestamp"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Timestamp = timestampPtr(aux.Timestamp)
	return nil
}

// FleetVehicle is one entry of a fleet_status snapshot or of the REST
// vehicle list.
type FleetVehicle struct {
	VehicleID   string     `json:"vehicle_id"`
	Name        string     `json:"name,omitempty"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	Speed       *float64   `json:"speed,omitempty"`
	Heading     *float64   `json:"heading,omitempty"`
	Status      string     `json:"status,omitempty"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	DriverName  string     `json:"driver_name,omitempty"`
	DriverPhone string     `json:"driver_phone,omitempty"`
	LoadNumber  string     `json:"load_number,omitempty"`
	AssetNumber string     `json:"asset_number,omitempty"`
	Geohash     string     `json:"geohash,omitempty"`
}

// HasCoordinates reports whether both coordinates are present
func (v FleetVehicle) HasCoordinates() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// UnmarshalJSON decodes the entry with a lenient last_update
func (v *FleetVehicle) UnmarshalJSON(data []byte) error {
	type plain FleetVehicle
	aux := struct {
		*plain
		LastUpdate json.RawMessage `json:"last_update"`
	}{plain: (*plain)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v.LastUpdate = timestampPtr(aux.LastUpdate)
	return nil
}

// VehicleLocationEvent carries a dispatcher location_update between
// tracking server instances. Origin identifies the publishing instance.
type VehicleLocationEvent struct {
	Origin    string                 `json:"origin"`
	Vehicle   VehicleLocationPayload `json:"vehicle"`
	CreatedAt time.Time              `json:"created_at"`
}

// VehicleStatusEvent is device telemetry relayed between tracking servers
type VehicleStatusEvent struct {
	Origin    string              `json:"origin"`
	VehicleID string              `json:"vehicle_id"`
	Status    StatusUpdatePayload `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// GeoQuery selects vehicles within RadiusKm of a point
type GeoQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
	RadiusKm  float64 `validate:"gt=0,lte=1000"`
}

// VehicleQuery filters the tracking server vehicle list. Zero values match
// every vehicle.
type VehicleQuery struct {
	Geohash string // cell prefix
	Near    *GeoQuery
}
