package constants

// Redis key formats
const (
	KeyVehicleLocation = "vehicle:location:%s" // Format: vehicle:location:{vehicle_id}
	KeyVehicleStatus   = "vehicle:status:%s"   // Format: vehicle:status:{vehicle_id}
	KeyVehicleGeo      = "vehicles:geo"        // GEO set of all last known vehicle positions
	KeyVehicleIndex    = "vehicles:index"      // Set of vehicle ids with a stored position
)

// Redis hash fields
const (
	FieldLatitude       = "lat"
	FieldLongitude      = "lng"
	FieldSpeed          = "speed"
	FieldHeading        = "heading"
	FieldAccuracy       = "accuracy"
	FieldTimestamp      = "ts"
	FieldLoadID         = "load_id"
	FieldGeohash        = "geohash"
	FieldStatus         = "status"
	FieldBattery        = "battery"
	FieldSignalStrength = "signal"
	FieldName           = "name"
)
