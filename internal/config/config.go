package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Dispatch DispatchConfig
	Geocode  GeocodeConfig
	Report   ReportConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DispatchConfig holds the dispatch cycle and reservation scheduler
// parameters.
type DispatchConfig struct {
	MaxAttempts       int
	InitialRadius     float64 // meters, immediate requests
	ReservationRadius float64 // meters, single reservation broadcast
	GrowthFactor      float64
	WaitWindow        time.Duration
	PollInterval      time.Duration
	CancelWindow      time.Duration
	MaxActiveCycles   int // 0 means unbounded
}

// GeocodeConfig holds the address resolution collaborator configuration.
type GeocodeConfig struct {
	APIKey   string
	Endpoint string
}

// ReportConfig holds the external fleet status sink configuration.
type ReportConfig struct {
	URL     string
	Enabled bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "dispatch-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Dispatch: DispatchConfig{
			MaxAttempts:       getIntEnv("DISPATCH_MAX_ATTEMPTS", 3),
			InitialRadius:     getFloatEnv("DISPATCH_INITIAL_RADIUS_M", 1000),
			ReservationRadius: getFloatEnv("DISPATCH_RESERVATION_RADIUS_M", 5000),
			GrowthFactor:      getFloatEnv("DISPATCH_GROWTH_FACTOR", 1.5),
			WaitWindow:        getDurationEnv("DISPATCH_WAIT_WINDOW", 12*time.Second),
			PollInterval:      getDurationEnv("DISPATCH_POLL_INTERVAL", 5*time.Minute),
			CancelWindow:      getDurationEnv("DISPATCH_CANCEL_WINDOW", 2*time.Hour),
			MaxActiveCycles:   getIntEnv("DISPATCH_MAX_ACTIVE_CYCLES", 0),
		},
		Geocode: GeocodeConfig{
			APIKey:   getEnv("GEOCODE_API_KEY", ""),
			Endpoint: getEnv("GEOCODE_ENDPOINT", "https://maps.googleapis.com/maps/api/geocode/json"),
		},
		Report: ReportConfig{
			URL:     getEnv("REPORT_URL", ""),
			Enabled: getBoolEnv("REPORT_ENABLED", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
