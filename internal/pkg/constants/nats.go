package constants

// NATS Subjects
const (
	// Tracking server fan-out between instances
	SubjectVehicleLocation = "fleet.vehicle.location" // payload: models.VehicleLocationEvent
	SubjectVehicleStatus   = "fleet.vehicle.status"   // payload: models.VehicleStatusEvent
)
