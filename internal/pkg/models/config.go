package models

import "time"

// Config represents application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Redis    RedisConfig
	NATS     NATSConfig
	NewRelic NewRelicConfig
	Logger   LoggerConfig
	Stream   StreamConfig
	Fleet    FleetConfig
	Driver   DriverConfig
	Tracking TrackingConfig
}

// AppConfig contains application-specific configuration
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	Version     string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int `validate:"gte=0,lte=65535"`
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// NATSConfig contains NATS connection configuration
type NATSConfig struct {
	URL string
}

// NewRelicConfig contains New Relic agent configuration
type NewRelicConfig struct {
	LicenseKey  string
	AppName     string
	Enabled     bool
	ForwardLogs bool
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level      string `validate:"omitempty,oneof=debug info warn error fatal"`
	FilePath   string
	MaxSize    int // in MB
	MaxAge     int // in days
	MaxBackups int
	Compress   bool
}

// StreamConfig contains the tracking stream connection policy
type StreamConfig struct {
	BaseURL          string        `validate:"required,url"`
	RetryInterval    time.Duration `validate:"gt=0"`
	MaxAttempts      int           `validate:"gt=0"`
	PingInterval     time.Duration `validate:"gte=0"`
	HandshakeTimeout time.Duration `validate:"gte=0"`
}

// FleetConfig contains dispatcher side configuration
type FleetConfig struct {
	APIURL       string `validate:"required,url"`
	APIKey       string
	FetchTimeout time.Duration `validate:"gt=0"`
	PollInterval time.Duration `validate:"gte=0"` // zero disables timer polling
	StaleGuard   bool
}

// DriverConfig contains driver device configuration
type DriverConfig struct {
	VehicleID      string
	LoadID         string
	IdleInterval   time.Duration `validate:"gt=0"`
	ActiveInterval time.Duration `validate:"gt=0"`
	FixTimeout     time.Duration `validate:"gt=0"`
	StatusInterval time.Duration `validate:"gte=0"`
	Source         string        `validate:"oneof=replay nmea"`
	SerialDevice   string
	SerialBaud     int
	RouteFile      string
}

// TrackingConfig contains reference tracking server configuration
type TrackingConfig struct {
	LocationTTL  time.Duration `validate:"gt=0"`
	GeohashChars uint          `validate:"gte=1,lte=12"`
	APIKeys      []string      // empty disables the REST API key check
}
