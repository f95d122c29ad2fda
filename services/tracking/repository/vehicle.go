package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/database"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/AminderM/Magic-33-sub001/services/tracking"
	"github.com/go-redis/redis/v8"
)

type vehicleRepo struct {
	redisClient  *database.RedisClient
	ttl          time.Duration
	geohashChars uint
}

// NewVehicleRepository creates a Redis backed vehicle repository. Positions
// expire ttl after their last update.
func NewVehicleRepository(redisClient *database.RedisClient, cfg models.TrackingConfig) tracking.VehicleRepo {
	return &vehicleRepo{
		redisClient:  redisClient,
		ttl:          cfg.LocationTTL,
		geohashChars: cfg.GeohashChars,
	}
}

// SaveLocation writes the position hash, the GEO entry and the index in one
// transaction
func (r *vehicleRepo) SaveLocation(ctx context.Context, vehicleID string, location models.DriverLocationPayload) (models.FleetVehicle, error) {
	key := fmt.Sprintf(constants.KeyVehicleLocation, vehicleID)
	cell := utils.EncodeGeohash(utils.GeoPoint{Latitude: location.Latitude, Longitude: location.Longitude}, r.geohashChars)

	fields := map[string]interface{}{
		constants.FieldLatitude:  formatFloat(location.Latitude),
		constants.FieldLongitude: formatFloat(location.Longitude),
		constants.FieldTimestamp: models.FormatTime(location.Timestamp),
		constants.FieldGeohash:   cell,
	}
	var cleared []string
	optional := func(field string, value *float64) {
		if value != nil {
			fields[field] = formatFloat(*value)
		} else {
			cleared = append(cleared, field)
		}
	}
	optional(constants.FieldSpeed, location.Speed)
	optional(constants.FieldHeading, location.Heading)
	optional(constants.FieldAccuracy, location.Accuracy)
	if location.LoadID != nil && *location.LoadID != "" {
		fields[constants.FieldLoadID] = *location.LoadID
	} else {
		cleared = append(cleared, constants.FieldLoadID)
	}

	_, err := r.redisClient.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if len(cleared) > 0 {
			pipe.HDel(ctx, key, cleared...)
		}
		pipe.Expire(ctx, key, r.ttl)
		pipe.GeoAdd(ctx, constants.KeyVehicleGeo, &redis.GeoLocation{
			Name:      vehicleID,
			Longitude: location.Longitude,
			Latitude:  location.Latitude,
		})
		pipe.SAdd(ctx, constants.KeyVehicleIndex, vehicleID)
		return nil
	})
	if err != nil {
		return models.FleetVehicle{}, fmt.Errorf("failed to store vehicle location: %w", err)
	}

	return r.GetVehicle(ctx, vehicleID)
}

// SaveStatus stores the latest device telemetry of a vehicle
func (r *vehicleRepo) SaveStatus(ctx context.Context, vehicleID string, status models.StatusUpdatePayload) error {
	key := fmt.Sprintf(constants.KeyVehicleStatus, vehicleID)

	fields := map[string]interface{}{
		constants.FieldStatus: status.Status,
	}
	var cleared []string
	if status.Battery != nil {
		fields[constants.FieldBattery] = formatFloat(*status.Battery)
	} else {
		cleared = append(cleared, constants.FieldBattery)
	}
	if status.SignalStrength != nil {
		fields[constants.FieldSignalStrength] = strconv.Itoa(*status.SignalStrength)
	} else {
		cleared = append(cleared, constants.FieldSignalStrength)
	}

	_, err := r.redisClient.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if len(cleared) > 0 {
			pipe.HDel(ctx, key, cleared...)
		}
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store vehicle status: %w", err)
	}
	return nil
}

// GetVehicle reads one vehicle with its status
func (r *vehicleRepo) GetVehicle(ctx context.Context, vehicleID string) (models.FleetVehicle, error) {
	var location, status *redis.StringStringMapCmd
	_, err := r.redisClient.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		location = pipe.HGetAll(ctx, fmt.Sprintf(constants.KeyVehicleLocation, vehicleID))
		status = pipe.HGetAll(ctx, fmt.Sprintf(constants.KeyVehicleStatus, vehicleID))
		return nil
	})
	if err != nil {
		return models.FleetVehicle{}, fmt.Errorf("failed to get vehicle: %w", err)
	}

	v, ok := readVehicle(vehicleID, location.Val(), status.Val())
	if !ok {
		return models.FleetVehicle{}, tracking.ErrVehicleNotFound
	}
	return v, nil
}

// ListVehicles returns every vehicle with a stored position ordered by id.
// Index entries whose position expired are removed.
func (r *vehicleRepo) ListVehicles(ctx context.Context) ([]models.FleetVehicle, error) {
	ids, err := r.redisClient.Client.SMembers(ctx, constants.KeyVehicleIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	sort.Strings(ids)

	vehicles, expired, err := r.readVehicles(ctx, ids)
	if err != nil {
		return nil, err
	}
	r.prune(ctx, expired)
	return vehicles, nil
}

// FindNearby returns the vehicles within the query radius, nearest first
func (r *vehicleRepo) FindNearby(ctx context.Context, center models.GeoQuery) ([]models.FleetVehicle, error) {
	locations, err := r.redisClient.GeoRadius(ctx, constants.KeyVehicleGeo, center.Longitude, center.Latitude, center.RadiusKm, "km")
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby vehicles: %w", err)
	}

	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		ids = append(ids, loc.Name)
	}

	vehicles, expired, err := r.readVehicles(ctx, ids)
	if err != nil {
		return nil, err
	}
	r.prune(ctx, expired)
	return vehicles, nil
}

func (r *vehicleRepo) readVehicles(ctx context.Context, ids []string) ([]models.FleetVehicle, []string, error) {
	if len(ids) == 0 {
		return []models.FleetVehicle{}, nil, nil
	}

	locations := make([]*redis.StringStringMapCmd, len(ids))
	statuses := make([]*redis.StringStringMapCmd, len(ids))
	_, err := r.redisClient.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			locations[i] = pipe.HGetAll(ctx, fmt.Sprintf(constants.KeyVehicleLocation, id))
			statuses[i] = pipe.HGetAll(ctx, fmt.Sprintf(constants.KeyVehicleStatus, id))
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read vehicles: %w", err)
	}

	vehicles := make([]models.FleetVehicle, 0, len(ids))
	var expired []string
	for i, id := range ids {
		v, ok := readVehicle(id, locations[i].Val(), statuses[i].Val())
		if !ok {
			expired = append(expired, id)
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, expired, nil
}

func (r *vehicleRepo) prune(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	// Best effort: a failed prune is retried on the next read
	_, _ = r.redisClient.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, constants.KeyVehicleIndex, members...)
		pipe.ZRem(ctx, constants.KeyVehicleGeo, members...)
		return nil
	})
}

func readVehicle(vehicleID string, location, status map[string]string) (models.FleetVehicle, bool) {
	lat, latErr := strconv.ParseFloat(location[constants.FieldLatitude], 64)
	lng, lngErr := strconv.ParseFloat(location[constants.FieldLongitude], 64)
	if latErr != nil || lngErr != nil {
		return models.FleetVehicle{}, false
	}

	v := models.FleetVehicle{
		VehicleID:  vehicleID,
		Name:       location[constants.FieldName],
		Latitude:   models.Float64(lat),
		Longitude:  models.Float64(lng),
		Speed:      parseFloat(location[constants.FieldSpeed]),
		Heading:    parseFloat(location[constants.FieldHeading]),
		LoadNumber: location[constants.FieldLoadID],
		Geohash:    location[constants.FieldGeohash],
		Status:     status[constants.FieldStatus],
	}
	if ts, err := models.ParseTime(location[constants.FieldTimestamp]); err == nil {
		v.LastUpdate = &ts
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
