package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

func InitConfig(configPath string) *models.Config {
	local := GetEnv("APP_ENV", "local")
	if local == "local" && configPath != "" {
		// Load config from file
		err := godotenv.Load(configPath)
		if err != nil {
			log.Println("error loading config from file", err)
		}
	}
	// Create config from environment variables
	return loadConfigFromEnv()
}

func loadConfigFromEnv() *models.Config {
	configs := &models.Config{}

	// App config
	configs.App.Name = GetEnv("APP_NAME", "fleet-tracking")
	configs.App.Environment = GetEnv("APP_ENV", "local")
	configs.App.Debug = GetEnvAsBool("APP_DEBUG", true)
	configs.App.Version = GetEnv("APP_VERSION", "")

	// Server config
	configs.Server.Host = GetEnv("SERVER_HOST", "")
	configs.Server.Port = GetEnvAsInt("SERVER_PORT", 8080)
	configs.Server.ReadTimeout = GetEnvAsInt("SERVER_READ_TIMEOUT", 0)
	configs.Server.WriteTimeout = GetEnvAsInt("SERVER_WRITE_TIMEOUT", 0)
	configs.Server.ShutdownTimeout = GetEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30)

	// Redis config
	configs.Redis.Host = GetEnv("REDIS_HOST", "localhost")
	configs.Redis.Port = GetEnvAsInt("REDIS_PORT", 6379)
	configs.Redis.Password = GetEnv("REDIS_PASSWORD", "")
	configs.Redis.DB = GetEnvAsInt("REDIS_DB", 0)
	configs.Redis.PoolSize = GetEnvAsInt("REDIS_POOL_SIZE", 10)

	// NATS config
	configs.NATS.URL = GetEnv("NATS_URL", "")

	// NewRelic config
	configs.NewRelic.LicenseKey = GetEnv("NEW_RELIC_LICENSE_KEY", "")
	configs.NewRelic.AppName = GetEnv("NEW_RELIC_APP_NAME", "")
	configs.NewRelic.Enabled = GetEnvAsBool("NEW_RELIC_ENABLED", false)
	configs.NewRelic.ForwardLogs = GetEnvAsBool("NEW_RELIC_FORWARD_LOGS", false)

	// Logger config
	configs.Logger.Level = GetEnv("LOG_LEVEL", "info")
	configs.Logger.FilePath = GetEnv("LOG_FILE_PATH", "")
	configs.Logger.MaxSize = GetEnvAsInt("LOG_MAX_SIZE", 100)
	configs.Logger.MaxAge = GetEnvAsInt("LOG_MAX_AGE", 7)
	configs.Logger.MaxBackups = GetEnvAsInt("LOG_MAX_BACKUPS", 3)
	configs.Logger.Compress = GetEnvAsBool("LOG_COMPRESS", true)

	// Stream config
	configs.Stream.BaseURL = GetEnv("STREAM_BASE_URL", "http://localhost:8080")
	configs.Stream.RetryInterval = GetEnvAsDuration("STREAM_RETRY_INTERVAL", 3*time.Second)
	configs.Stream.MaxAttempts = GetEnvAsInt("STREAM_MAX_ATTEMPTS", 10)
	configs.Stream.PingInterval = GetEnvAsDuration("STREAM_PING_INTERVAL", 30*time.Second)
	configs.Stream.HandshakeTimeout = GetEnvAsDuration("STREAM_HANDSHAKE_TIMEOUT", 10*time.Second)

	// Fleet config
	configs.Fleet.APIURL = GetEnv("FLEET_API_URL", "http://localhost:8080")
	configs.Fleet.APIKey = GetEnv("FLEET_API_KEY", "")
	configs.Fleet.FetchTimeout = GetEnvAsDuration("FLEET_FETCH_TIMEOUT", 10*time.Second)
	configs.Fleet.PollInterval = GetEnvAsDuration("FLEET_POLL_INTERVAL", 0)
	configs.Fleet.StaleGuard = GetEnvAsBool("FLEET_STALE_GUARD", false)

	// Driver config
	configs.Driver.VehicleID = GetEnv("DRIVER_VEHICLE_ID", "")
	configs.Driver.LoadID = GetEnv("DRIVER_LOAD_ID", "")
	configs.Driver.IdleInterval = GetEnvAsDuration("DRIVER_IDLE_INTERVAL", 180*time.Second)
	configs.Driver.ActiveInterval = GetEnvAsDuration("DRIVER_ACTIVE_INTERVAL", 30*time.Second)
	configs.Driver.FixTimeout = GetEnvAsDuration("DRIVER_FIX_TIMEOUT", 10*time.Second)
	configs.Driver.StatusInterval = GetEnvAsDuration("DRIVER_STATUS_INTERVAL", 60*time.Second)
	configs.Driver.Source = GetEnv("DRIVER_SOURCE", "replay")
	configs.Driver.SerialDevice = GetEnv("DRIVER_SERIAL_DEVICE", "/dev/ttyUSB0")
	configs.Driver.SerialBaud = GetEnvAsInt("DRIVER_SERIAL_BAUD", 9600)
	configs.Driver.RouteFile = GetEnv("DRIVER_ROUTE_FILE", "")

	// Tracking server config
	configs.Tracking.LocationTTL = GetEnvAsDuration("TRACKING_LOCATION_TTL", 24*time.Hour)
	configs.Tracking.GeohashChars = uint(GetEnvAsInt("TRACKING_GEOHASH_CHARS", 7))
	configs.Tracking.APIKeys = GetEnvAsSlice("TRACKING_API_KEYS", nil)

	return configs
}

// Validate checks the struct constraints of every config section
func Validate(configs *models.Config) error {
	v := validator.New()
	if err := v.Struct(configs); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Helper functions to get environment variables with different types
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

// GetEnvAsDuration accepts Go duration strings ("3s") or plain seconds ("3")
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}

	log.Printf("Warning: Invalid duration value for %s, using default: %v", key, defaultValue)
	return defaultValue
}

// GetEnvAsSlice splits a comma separated value, dropping empty items
func GetEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	return values
}
