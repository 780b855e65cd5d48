package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/DuMaciel/WeatherForecast/internal/api/http"
	"github.com/DuMaciel/WeatherForecast/internal/config"
	"github.com/DuMaciel/WeatherForecast/internal/scheduler"
	"github.com/DuMaciel/WeatherForecast/internal/store"
	"github.com/DuMaciel/WeatherForecast/internal/throttle"
	"github.com/DuMaciel/WeatherForecast/internal/weather"
	"github.com/DuMaciel/WeatherForecast/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := newLogger(cfg.LogLevel)
	slog.SetDefault(lg)

	blobs, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer blobs.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// One throttle per process: every geocoding request goes through it.
	geoThrottle := throttle.New(cfg.GeocodingMinInterval)

	forecaster := providers.NewOpenMeteoProvider(httpClient,
		providers.WithOpenMeteoURL(cfg.ForecastURL),
		providers.WithOpenMeteoRetries(cfg.ForecastMaxRetries),
	)
	geocoder := providers.NewNominatimProvider(httpClient, geoThrottle,
		providers.WithNominatimURL(cfg.GeocodingURL),
		providers.WithIdentity(cfg.GeocodingUserAgent, cfg.GeocodingReferer),
	)

	favorites := store.NewFavorites(blobs,
		store.WithKey(cfg.StoreKey),
		store.WithPolicy(weather.NewStalenessPolicy(cfg.BulkRefreshInterval)),
		store.WithLogger(lg.With("component", "favorites")),
	)

	service := weather.NewService(favorites, forecaster, geocoder,
		weather.WithPolicies(
			weather.NewStalenessPolicy(cfg.BulkRefreshInterval),
			weather.NewStalenessPolicy(cfg.ManualRefreshInterval),
		),
		weather.WithConcurrency(cfg.FetchConcurrency),
		weather.WithLogger(lg.With("component", "refresh")),
	)

	board := scheduler.New(service, cfg.StatusInterval, lg.With("component", "status"))
	if err := board.Start(); err != nil {
		log.Fatalf("failed to start status board: %v", err)
	}
	defer board.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-favorites",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-favorites",
			"store":   cfg.StoreBackend,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		lg.Info("listening", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", "error", err)
	}
}

type blobStore interface {
	store.BlobStore
	io.Closer
}

func openBlobStore(cfg *config.AppConfig) (blobStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		s, err := store.NewSQLite(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendKeyring:
		return store.NewKeyringStore(store.DefaultKeyringService), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
