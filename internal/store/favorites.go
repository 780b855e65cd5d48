package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

// DefaultFavoritesKey is the blob key holding the serialized collection.
const DefaultFavoritesKey = "favorite_cities"

// BlobStore is a durable string-keyed blob store.
type BlobStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Favorites persists the ordered favorites collection as a single JSON blob.
// Every write reads, modifies and rewrites the whole collection; writes from
// this process are serialized.
type Favorites struct {
	mu     sync.Mutex
	blobs  BlobStore
	key    string
	policy weather.StalenessPolicy
	now    func() time.Time
	logger *slog.Logger
}

// FavoritesOption configures Favorites.
type FavoritesOption func(*Favorites)

// WithKey overrides the blob key.
func WithKey(key string) FavoritesOption {
	return func(f *Favorites) {
		if key != "" {
			f.key = key
		}
	}
}

// WithPolicy sets the policy used by NeedsRefresh.
func WithPolicy(p weather.StalenessPolicy) FavoritesOption {
	return func(f *Favorites) {
		f.policy = p
	}
}

// WithClock overrides the time source used to stamp updates.
func WithClock(now func() time.Time) FavoritesOption {
	return func(f *Favorites) {
		f.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FavoritesOption {
	return func(f *Favorites) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFavorites creates a favorites store on top of blobs.
func NewFavorites(blobs BlobStore, opts ...FavoritesOption) *Favorites {
	f := &Favorites{
		blobs:  blobs,
		key:    DefaultFavoritesKey,
		policy: weather.NewStalenessPolicy(weather.DefaultRefreshInterval),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// load reads and decodes the collection. Callers that write hold f.mu.
func (f *Favorites) load(ctx context.Context) ([]weather.TrackedLocation, error) {
	raw, ok, err := f.blobs.Get(ctx, f.key)
	if err != nil {
		return nil, weather.StorageError("read favorites", err)
	}
	if !ok || raw == "" {
		return []weather.TrackedLocation{}, nil
	}

	var coll []weather.TrackedLocation
	if err := json.Unmarshal([]byte(raw), &coll); err != nil {
		return nil, weather.StorageError("decode favorites", err)
	}
	if coll == nil {
		coll = []weather.TrackedLocation{}
	}
	return coll, nil
}

func (f *Favorites) save(ctx context.Context, coll []weather.TrackedLocation) error {
	if coll == nil {
		coll = []weather.TrackedLocation{}
	}
	data, err := json.Marshal(coll)
	if err != nil {
		return weather.StorageError("encode favorites", err)
	}
	if err := f.blobs.Set(ctx, f.key, string(data)); err != nil {
		return weather.StorageError("write favorites", err)
	}
	return nil
}

// index maps ids to positions in coll.
func index(coll []weather.TrackedLocation) map[string]int {
	idx := make(map[string]int, len(coll))
	for i, loc := range coll {
		if _, dup := idx[loc.ID]; !dup {
			idx[loc.ID] = i
		}
	}
	return idx
}

// List returns the stored collection, empty when nothing is stored.
func (f *Favorites) List(ctx context.Context) ([]weather.TrackedLocation, error) {
	return f.load(ctx)
}

// Get returns the record for id.
func (f *Favorites) Get(ctx context.Context, id string) (weather.TrackedLocation, bool, error) {
	coll, err := f.load(ctx)
	if err != nil {
		return weather.TrackedLocation{}, false, err
	}
	if i, ok := index(coll)[id]; ok {
		return coll[i], true, nil
	}
	return weather.TrackedLocation{}, false, nil
}

// Add appends loc unless its id is already tracked.
func (f *Favorites) Add(ctx context.Context, loc weather.TrackedLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, err := f.load(ctx)
	if err != nil {
		return err
	}
	if _, exists := index(coll)[loc.ID]; exists {
		f.logger.Debug("favorite already tracked", "location_id", loc.ID)
		return nil
	}

	if err := f.save(ctx, append(coll, loc)); err != nil {
		return err
	}
	f.logger.Info("favorite added", "location_id", loc.ID, "location", loc.Name)
	return nil
}

// Remove drops id from the collection and persists the result even when id
// was not tracked.
func (f *Favorites) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, err := f.load(ctx)
	if err != nil {
		return err
	}

	kept := coll[:0]
	for _, loc := range coll {
		if loc.ID != id {
			kept = append(kept, loc)
		}
	}
	if err := f.save(ctx, kept); err != nil {
		return err
	}
	f.logger.Info("favorite removed", "location_id", id, "removed", len(kept) != len(coll))
	return nil
}

// Contains reports whether id is tracked.
func (f *Favorites) Contains(ctx context.Context, id string) (bool, error) {
	coll, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := index(coll)[id]
	return ok, nil
}

// UpdateForecast stores bundle for id, stamped with the current time. An
// unknown id is a silent no-op and found is false.
func (f *Favorites) UpdateForecast(ctx context.Context, id string, bundle weather.ForecastBundle) (weather.TrackedLocation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, err := f.load(ctx)
	if err != nil {
		return weather.TrackedLocation{}, false, err
	}

	i, ok := index(coll)[id]
	if !ok {
		f.logger.Debug("forecast update for untracked location ignored", "location_id", id)
		return weather.TrackedLocation{}, false, nil
	}

	coll[i] = coll[i].WithForecast(bundle, f.now())
	if err := f.save(ctx, coll); err != nil {
		return weather.TrackedLocation{}, false, err
	}
	return coll[i], true, nil
}

// NeedsRefresh reports whether id's forecast is stale. Untracked ids need a
// refresh.
func (f *Favorites) NeedsRefresh(ctx context.Context, id string) (bool, error) {
	loc, ok, err := f.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return f.policy.IsStale(loc.Forecast.UpdatedAt(), f.now()), nil
}

// Clear removes every favorite.
func (f *Favorites) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.save(ctx, nil); err != nil {
		return err
	}
	f.logger.Info("favorites cleared")
	return nil
}

// ResetForecasts drops every cached forecast and keeps the locations.
func (f *Favorites) ResetForecasts(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, err := f.load(ctx)
	if err != nil {
		return err
	}
	for i := range coll {
		coll[i] = weather.Track(coll[i].Location)
	}
	if err := f.save(ctx, coll); err != nil {
		return err
	}
	f.logger.Info("forecast cache cleared", "locations", len(coll))
	return nil
}

var _ weather.Favorites = (*Favorites)(nil)
