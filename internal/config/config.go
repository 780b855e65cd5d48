package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendKeyring = "keyring"
)

type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080" validate:"required"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	ForecastURL        string `envconfig:"FORECAST_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	ForecastMaxRetries int    `envconfig:"FORECAST_MAX_RETRIES" default:"1" validate:"gte=0,lte=5"`

	GeocodingURL         string        `envconfig:"GEOCODING_URL" default:"https://nominatim.openstreetmap.org/search" validate:"required,url"`
	GeocodingUserAgent   string        `envconfig:"GEOCODING_USER_AGENT" default:"WeatherForecast/1.0.0 (contact@weatherapp.com)" validate:"required"`
	GeocodingReferer     string        `envconfig:"GEOCODING_REFERER" default:"https://weatherforecast.app"`
	GeocodingMinInterval time.Duration `envconfig:"GEOCODING_MIN_INTERVAL" default:"1s" validate:"gte=1s"`

	// The manual interval gates the per-favorite refresh button, the bulk
	// interval gates LoadAll and RefreshEligible.
	ManualRefreshInterval time.Duration `envconfig:"MANUAL_REFRESH_INTERVAL" default:"5m" validate:"gt=0"`
	BulkRefreshInterval   time.Duration `envconfig:"BULK_REFRESH_INTERVAL" default:"5m" validate:"gt=0"`

	// FetchConcurrency caps in-flight forecast fetches (0 = one per location).
	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"0" validate:"gte=0"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite" validate:"oneof=memory sqlite keyring"`
	StorePath    string `envconfig:"STORE_PATH" default:"favorites.db" validate:"required_if=StoreBackend sqlite"`
	StoreKey     string `envconfig:"STORE_KEY" default:"favorite_cities" validate:"required"`

	// StatusInterval controls how often the status board is logged (0 = off).
	StatusInterval time.Duration `envconfig:"STATUS_INTERVAL" default:"30s" validate:"gte=0"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv populates and validates the config from the process environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
