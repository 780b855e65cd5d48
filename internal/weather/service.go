package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// searchQuery is validated after trimming.
type searchQuery struct {
	Query string `validate:"min=2"`
}

// Service coordinates the favorites store, the forecast provider and the
// staleness rules. It decides which tracked locations need a refresh, fetches
// them concurrently and writes the results back through the store.
type Service struct {
	favorites  Favorites
	forecaster Forecaster
	geocoder   Geocoder

	// bulk gates LoadAll/RefreshEligible, manual gates the per-item refresh
	// affordance. Both default to DefaultRefreshInterval.
	bulk   StalenessPolicy
	manual StalenessPolicy

	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPolicies sets the bulk and manual staleness policies.
func WithPolicies(bulk, manual StalenessPolicy) ServiceOption {
	return func(s *Service) {
		s.bulk = bulk
		s.manual = manual
	}
}

// WithConcurrency caps the number of in-flight forecast fetches during bulk
// operations. Zero or less means one fetch per eligible location at once.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		s.concurrency = n
	}
}

// NewService creates a new Service.
func NewService(favorites Favorites, forecaster Forecaster, geocoder Geocoder, opts ...ServiceOption) *Service {
	s := &Service{
		favorites:  favorites,
		forecaster: forecaster,
		geocoder:   geocoder,
		bulk:       NewStalenessPolicy(DefaultRefreshInterval),
		manual:     NewStalenessPolicy(DefaultRefreshInterval),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search looks up candidate locations for a free-text query.
func (s *Service) Search(ctx context.Context, query string) ([]Location, error) {
	q := strings.TrimSpace(query)
	if err := validate.Struct(searchQuery{Query: q}); err != nil {
		return nil, ErrInvalidQuery
	}
	if s.geocoder == nil {
		return nil, fmt.Errorf("no geocoder configured")
	}
	return s.geocoder.Search(ctx, q)
}

// AddFavorite fetches the forecast for loc and saves it as a favorite. Nothing
// is saved when the fetch fails. Adding a tracked location returns the stored
// record untouched without fetching.
func (s *Service) AddFavorite(ctx context.Context, loc Location) (TrackedLocation, error) {
	if err := validate.Struct(loc); err != nil {
		return TrackedLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	if stored, ok, err := s.favorites.Get(ctx, loc.ID); err != nil {
		return TrackedLocation{}, err
	} else if ok {
		return stored, nil
	}

	bundle, err := s.forecaster.Fetch(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return TrackedLocation{}, err
	}

	tracked := Track(loc).WithForecast(bundle, s.now())
	if err := s.favorites.Add(ctx, tracked); err != nil {
		return TrackedLocation{}, err
	}

	stored, ok, err := s.favorites.Get(ctx, loc.ID)
	if err != nil {
		return TrackedLocation{}, err
	}
	if ok {
		return stored, nil
	}
	return tracked, nil
}

// RemoveFavorite stops tracking id.
func (s *Service) RemoveFavorite(ctx context.Context, id string) error {
	return s.favorites.Remove(ctx, id)
}

// IsFavorite reports whether id is tracked.
func (s *Service) IsFavorite(ctx context.Context, id string) (bool, error) {
	return s.favorites.Contains(ctx, id)
}

// ClearFavorites removes every tracked location.
func (s *Service) ClearFavorites(ctx context.Context) error {
	return s.favorites.Clear(ctx)
}

// ClearCache drops every cached forecast so the next load refetches all.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.favorites.ResetForecasts(ctx)
}

// CanRefresh reports whether the user may manually refresh loc now.
func (s *Service) CanRefresh(loc TrackedLocation) bool {
	return s.manual.IsStale(loc.Forecast.UpdatedAt(), s.now())
}

// LoadFavorites reads the stored collection and runs LoadAll over it.
func (s *Service) LoadFavorites(ctx context.Context) ([]TrackedLocation, error) {
	coll, err := s.favorites.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.LoadAll(ctx, coll)
}

// LoadAll refreshes every location that has no cached forecast or whose
// forecast is stale. Fetch failures are logged and the location keeps its
// previous data; storage failures abort the call.
func (s *Service) LoadAll(ctx context.Context, coll []TrackedLocation) ([]TrackedLocation, error) {
	out, _, err := s.refresh(ctx, "load_all", coll, func(loc TrackedLocation, now time.Time) bool {
		return !loc.Forecast.IsFetched() || s.bulk.IsStale(loc.Forecast.UpdatedAt(), now)
	})
	return out, err
}

// RefreshEligible refreshes the stale locations of coll and reports how many
// were actually refreshed.
func (s *Service) RefreshEligible(ctx context.Context, coll []TrackedLocation) ([]TrackedLocation, int, error) {
	return s.refresh(ctx, "refresh_eligible", coll, func(loc TrackedLocation, now time.Time) bool {
		return s.bulk.IsStale(loc.Forecast.UpdatedAt(), now)
	})
}

// RefreshFavorites reads the stored collection and runs RefreshEligible over it.
func (s *Service) RefreshFavorites(ctx context.Context) ([]TrackedLocation, int, error) {
	coll, err := s.favorites.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.RefreshEligible(ctx, coll)
}

// RefreshOne fetches and stores a forecast for loc regardless of its age.
// Fetch errors are returned to the caller.
func (s *Service) RefreshOne(ctx context.Context, loc TrackedLocation) (TrackedLocation, error) {
	bundle, err := s.forecaster.Fetch(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return loc, err
	}

	updated, found, err := s.favorites.UpdateForecast(ctx, loc.ID, bundle)
	if err != nil {
		return loc, err
	}
	if !found {
		return loc.WithForecast(bundle, s.now()), nil
	}
	return updated, nil
}

// RefreshByID runs RefreshOne on the stored record for id.
func (s *Service) RefreshByID(ctx context.Context, id string) (TrackedLocation, error) {
	loc, ok, err := s.favorites.Get(ctx, id)
	if err != nil {
		return TrackedLocation{}, err
	}
	if !ok {
		return TrackedLocation{}, ErrNotTracked
	}
	return s.RefreshOne(ctx, loc)
}

// refresh fans out one fetch per eligible location and waits for all of them.
// The result keeps the input order.
func (s *Service) refresh(
	ctx context.Context,
	op string,
	coll []TrackedLocation,
	eligible func(TrackedLocation, time.Time) bool,
) ([]TrackedLocation, int, error) {
	log := s.logger.With("op", op, "run_id", uuid.NewString())
	now := s.now()

	out := make([]TrackedLocation, len(coll))
	copy(out, coll)

	var (
		g         errgroup.Group
		refreshed atomic.Int32
		attempted int
	)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	for i, loc := range coll {
		if !eligible(loc, now) {
			continue
		}
		attempted++

		i, loc := i, loc
		g.Go(func() error {
			bundle, err := s.forecaster.Fetch(ctx, loc.Lat, loc.Lon)
			if err != nil {
				// Isolated: the location keeps whatever it had.
				log.Warn("forecast fetch failed", "location_id", loc.ID, "location", loc.Name, "error", err)
				return nil
			}

			updated, found, err := s.favorites.UpdateForecast(ctx, loc.ID, bundle)
			if err != nil {
				return err
			}
			if !found {
				log.Debug("location removed during refresh", "location_id", loc.ID)
				out[i] = loc.WithForecast(bundle, s.now())
				return nil
			}

			out[i] = updated
			refreshed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("refresh aborted", "error", err)
		return nil, 0, err
	}

	log.Info("refresh completed", "locations", len(coll), "attempted", attempted, "refreshed", refreshed.Load())
	return out, int(refreshed.Load()), nil
}
