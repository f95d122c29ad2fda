package dispatcher

import (
	"sort"
	"sync"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithStaleGuard makes ApplyUpdate ignore updates older than the stored
// position. Without it the last update to arrive wins.
func WithStaleGuard() RegistryOption {
	return func(r *Registry) {
		r.staleGuard = true
	}
}

// Registry is the dispatcher's view of the fleet, keyed by vehicle id.
// Every stored vehicle has both coordinates.
type Registry struct {
	mu         sync.RWMutex
	vehicles   map[string]models.VehicleState
	staleGuard bool
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{vehicles: make(map[string]models.VehicleState)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyUpdate merges one incremental update. Kinematic fields are replaced
// and enrichment fields only when the update carries them. An unknown
// vehicle is inserted. Updates without both coordinates are rejected.
func (r *Registry) ApplyUpdate(u models.VehicleLocationPayload) bool {
	if u.VehicleID == "" || !u.HasCoordinates() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := models.Now()
	if u.Timestamp != nil && !u.Timestamp.IsZero() {
		ts = *u.Timestamp
	}

	v, exists := r.vehicles[u.VehicleID]
	if exists && r.staleGuard && ts.Before(v.Timestamp) {
		return false
	}
	if !exists {
		v = models.VehicleState{VehicleID: u.VehicleID}
	}

	v.Latitude = *u.Latitude
	v.Longitude = *u.Longitude
	v.Speed = copyFloat(u.Speed)
	v.Heading = copyFloat(u.Heading)
	v.Timestamp = ts

	setIf(&v.Name, u.Name)
	setIf(&v.DriverName, u.DriverName)
	setIf(&v.DriverPhone, u.DriverPhone)
	setIf(&v.LoadNumber, u.LoadNumber)
	setIf(&v.AssetNumber, u.AssetNumber)
	setIf(&v.Status, u.Status)

	r.vehicles[u.VehicleID] = v
	return true
}

// ApplySnapshot replaces the whole registry with the vehicles of a
// fleet_status frame that have both coordinates. It returns the number of
// vehicles kept.
func (r *Registry) ApplySnapshot(snapshot []models.FleetVehicle) int {
	next := make(map[string]models.VehicleState, len(snapshot))
	for _, fv := range snapshot {
		if v, ok := fromFleetVehicle(fv); ok {
			next[v.VehicleID] = v
		}
	}

	r.mu.Lock()
	r.vehicles = next
	r.mu.Unlock()
	return len(next)
}

// Merge upserts the fetched vehicles without removing vehicles absent from
// records. It returns the number of vehicles merged.
func (r *Registry) Merge(records []models.FleetVehicle) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := 0
	for _, fv := range records {
		v, ok := fromFleetVehicle(fv)
		if !ok {
			continue
		}
		if prev, exists := r.vehicles[v.VehicleID]; exists {
			keepEnrichment(&v, prev)
		}
		r.vehicles[v.VehicleID] = v
		merged++
	}
	return merged
}

// List returns a copy of every vehicle ordered by vehicle id
func (r *Registry) List() []models.VehicleState {
	r.mu.RLock()
	out := make([]models.VehicleState, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].VehicleID < out[j].VehicleID
	})
	return out
}

// Get returns one vehicle
func (r *Registry) Get(vehicleID string) (models.VehicleState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[vehicleID]
	return v, ok
}

// Len returns the number of vehicles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vehicles)
}

func fromFleetVehicle(fv models.FleetVehicle) (models.VehicleState, bool) {
	if fv.VehicleID == "" || !fv.HasCoordinates() {
		return models.VehicleState{}, false
	}

	v := models.VehicleState{
		VehicleID:   fv.VehicleID,
		Name:        fv.Name,
		Latitude:    *fv.Latitude,
		Longitude:   *fv.Longitude,
		Speed:       copyFloat(fv.Speed),
		Heading:     copyFloat(fv.Heading),
		DriverName:  fv.DriverName,
		DriverPhone: fv.DriverPhone,
		LoadNumber:  fv.LoadNumber,
		AssetNumber: fv.AssetNumber,
		Status:      fv.Status,
	}
	if fv.LastUpdate != nil && !fv.LastUpdate.IsZero() {
		v.Timestamp = *fv.LastUpdate
	} else {
		// Arrival time stands in for a missing server timestamp
		v.Timestamp = models.Now()
	}
	return v, true
}

// keepEnrichment fills enrichment fields the fetched record left empty
func keepEnrichment(v *models.VehicleState, prev models.VehicleState) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&v.Name, prev.Name)
	fill(&v.DriverName, prev.DriverName)
	fill(&v.DriverPhone, prev.DriverPhone)
	fill(&v.LoadNumber, prev.LoadNumber)
	fill(&v.AssetNumber, prev.AssetNumber)
	fill(&v.Status, prev.Status)
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
