package source

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Waypoint is one point of a replay route
type Waypoint struct {
	Latitude  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"lng" validate:"gte=-180,lte=180"`
}

// Route is a simulated trip read from YAML
type Route struct {
	Name     string     `yaml:"name"`
	SpeedKmh float64    `yaml:"speed_kmh" validate:"gt=0"`
	Accuracy float64    `yaml:"accuracy" validate:"gte=0"`
	Loop     bool       `yaml:"loop"`
	Points   []Waypoint `yaml:"points" validate:"min=2,dive"`
}

// LoadRoute reads and validates a route file
func LoadRoute(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	return ParseRoute(data)
}

// ParseRoute decodes and validates a YAML route
func ParseRoute(data []byte) (*Route, error) {
	var route Route
	if err := yaml.Unmarshal(data, &route); err != nil {
		return nil, fmt.Errorf("failed to parse route: %w", err)
	}
	if err := validator.New().Struct(route); err != nil {
		return nil, fmt.Errorf("invalid route: %w", err)
	}
	return &route, nil
}

// Replay is a position source that drives along a route at constant speed
// in wall clock time. It is used for demos and load tests.
type Replay struct {
	route *Route
	legs  []float64 // cumulative km at the end of each leg
	now   func() time.Time
	mu    sync.Mutex
	start time.Time
}

// NewReplay creates a replay source over route
func NewReplay(route *Route) *Replay {
	legs := make([]float64, len(route.Points)-1)
	total := 0.0
	for i := 1; i < len(route.Points); i++ {
		total += utils.CalculateDistance(point(route.Points[i-1]), point(route.Points[i]))
		legs[i-1] = total
	}
	return &Replay{route: route, legs: legs, now: time.Now}
}

// RequestPermission starts the simulated trip
func (r *Replay) RequestPermission(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.start.IsZero() {
		r.start = r.now()
	}
	return nil
}

// CurrentPosition returns the simulated position at the current time
func (r *Replay) CurrentPosition(ctx context.Context) (models.Position, error) {
	if err := ctx.Err(); err != nil {
		return models.Position{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}

	total := r.legs[len(r.legs)-1]
	traveled := r.route.SpeedKmh * now.Sub(r.start).Hours()
	moving := true
	if total == 0 {
		traveled, moving = 0, false
	} else if r.route.Loop {
		traveled = math.Mod(traveled, total)
	} else if traveled >= total {
		traveled, moving = total, false
	}

	leg := 0
	for leg < len(r.legs)-1 && traveled > r.legs[leg] {
		leg++
	}
	legStart := 0.0
	if leg > 0 {
		legStart = r.legs[leg-1]
	}
	from, to := point(r.route.Points[leg]), point(r.route.Points[leg+1])

	f := 1.0
	if length := r.legs[leg] - legStart; length > 0 {
		f = (traveled - legStart) / length
	}
	at := utils.Interpolate(from, to, f)

	speed := 0.0
	if moving {
		speed = r.route.SpeedKmh / 3.6
	}

	return models.Position{
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
		Speed:     models.Float64(speed),
		Heading:   models.Float64(utils.Bearing(from, to)),
		Accuracy:  models.Float64(r.route.Accuracy),
		Timestamp: now.UTC(),
	}, nil
}

func point(w Waypoint) utils.GeoPoint {
	return utils.GeoPoint{Latitude: w.Latitude, Longitude: w.Longitude}
}
