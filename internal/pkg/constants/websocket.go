package constants

// Message types exchanged on the tracking streams
const (
	// Client to server
	EventRequestStatus = "request_status"
	EventStatusUpdate  = "status_update"

	// Both directions: driver to server carries a sample, server to
	// dispatcher carries one vehicle's position
	EventLocationUpdate = "location_update"

	// Server to client
	EventFleetStatus      = "fleet_status"
	EventLocationReceived = "location_received"
	EventError            = "error"
)

// Stream endpoint paths, relative to the configured base address
const (
	PathFleetStream   = "/api/ws/fleet"
	PathVehicleStream = "/api/ws/vehicles/%s" // Format: /api/ws/vehicles/{vehicle_id}
	PathVehicles      = "/api/vehicles"
)

// Error codes reported in error frames
const (
	ErrorInvalidFormat    = "invalid_format"
	ErrorInvalidLocation  = "invalid_location"
	ErrorUnknownEvent     = "unknown_event"
	ErrorInternalError    = "internal_error"
	ErrorVehicleNotFound  = "vehicle_not_found"
	ErrorValidationFailed = "validation_failed"
)
