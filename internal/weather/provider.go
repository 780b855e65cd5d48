package weather

import (
	"context"
)

// Forecaster abstracts the forecast provider (Open-Meteo).
type Forecaster interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (ForecastBundle, error)
}

// Geocoder abstracts the place-search provider (Nominatim).
type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string) ([]Location, error)
}

// Favorites is the contract of the durable favorites collection. It is the
// only writer of the persisted form.
type Favorites interface {
	List(ctx context.Context) ([]TrackedLocation, error)
	Get(ctx context.Context, id string) (TrackedLocation, bool, error)
	Add(ctx context.Context, loc TrackedLocation) error
	Remove(ctx context.Context, id string) error
	Contains(ctx context.Context, id string) (bool, error)
	// UpdateForecast overwrites the cached forecast of id and stamps it with
	// the current time. found is false when id is not tracked.
	UpdateForecast(ctx context.Context, id string, bundle ForecastBundle) (updated TrackedLocation, found bool, err error)
	NeedsRefresh(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	ResetForecasts(ctx context.Context) error
}
