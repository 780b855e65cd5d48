package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func lisboa() weather.Location {
	return weather.Location{
		ID:          "1",
		Name:        "Lisboa",
		Country:     "Portugal",
		Lat:         38.7,
		Lon:         -9.1,
		DisplayName: "Lisboa, Portugal",
	}
}

func porto() weather.Location {
	return weather.Location{ID: "2", Name: "Porto", Country: "Portugal", Lat: 41.15, Lon: -8.61}
}

func sampleBundle(temp float64) weather.ForecastBundle {
	return weather.ForecastBundle{
		Latitude:  38.7,
		Longitude: -9.1,
		Timezone:  "Europe/Lisbon",
		Current: weather.CurrentConditions{
			Time:        "2024-03-01T12:00",
			Temperature: temp,
			WeatherCode: 2,
		},
		Hourly: weather.HourlySeries{
			Time:                     []string{"2024-03-01T12:00"},
			Temperature:              []float64{temp},
			RelativeHumidity:         []float64{60},
			PrecipitationProbability: []float64{5},
			WeatherCode:              []int{2},
		},
		Daily: weather.DailySeries{
			Time:                        []string{"2024-03-01"},
			TemperatureMax:              []float64{temp + 2},
			TemperatureMin:              []float64{temp - 6},
			PrecipitationProbabilityMax: []float64{10},
			WeatherCode:                 []int{2},
		},
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFavorites(blobs BlobStore) (*Favorites, *fixedClock) {
	clock := &fixedClock{now: testNow}
	return NewFavorites(blobs, WithClock(clock.Now)), clock
}

// failingBlobs fails every call.
type failingBlobs struct{}

func (failingBlobs) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingBlobs) Set(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func TestFavorites_ListEmpty(t *testing.T) {
	fav, _ := newTestFavorites(NewMemoryStore())

	coll, err := fav.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, coll)
	assert.Empty(t, coll)
}

func TestFavorites_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(NewMemoryStore())

	first := weather.Track(lisboa()).WithForecast(sampleBundle(18), testNow)
	second := weather.Track(weather.Location{ID: "1", Name: "Lisbon", Country: "PT", Lat: 1, Lon: 1})

	require.NoError(t, fav.Add(ctx, first))
	require.NoError(t, fav.Add(ctx, second))

	coll, err := fav.List(ctx)
	require.NoError(t, err)
	require.Len(t, coll, 1)
	assert.Equal(t, first, coll[0])
}

func TestFavorites_AddKeepsOrder(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(NewMemoryStore())

	require.NoError(t, fav.Add(ctx, weather.Track(porto())))
	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))

	coll, err := fav.List(ctx)
	require.NoError(t, err)
	require.Len(t, coll, 2)
	assert.Equal(t, "2", coll[0].ID)
	assert.Equal(t, "1", coll[1].ID)
}

func TestFavorites_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	fav, _ := newTestFavorites(blobs)

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))
	require.NoError(t, fav.Add(ctx, weather.Track(porto())))

	require.NoError(t, fav.Remove(ctx, "1"))
	require.NoError(t, fav.Remove(ctx, "1"))
	require.NoError(t, fav.Remove(ctx, "missing"))

	coll, err := fav.List(ctx)
	require.NoError(t, err)
	require.Len(t, coll, 1)
	assert.Equal(t, "2", coll[0].ID)

	ok, err := fav.Contains(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFavorites_RemovePersistsOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	fav, _ := newTestFavorites(blobs)

	require.NoError(t, fav.Remove(ctx, "1"))

	raw, ok, err := blobs.Get(ctx, DefaultFavoritesKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[]`, raw)
}

func TestFavorites_UpdateForecast(t *testing.T) {
	ctx := context.Background()
	fav, clock := newTestFavorites(NewMemoryStore())

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))
	clock.Advance(time.Minute)

	updated, found, err := fav.UpdateForecast(ctx, "1", sampleBundle(21))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testNow.Add(time.Minute), updated.Forecast.UpdatedAt())

	stored, ok, err := fav.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	bundle, fetched := stored.Forecast.Bundle()
	require.True(t, fetched)
	assert.Equal(t, 21.0, bundle.Current.Temperature)
	assert.True(t, stored.Forecast.UpdatedAt().Equal(testNow.Add(time.Minute)))
}

func TestFavorites_UpdateForecastOnRemovedIDIsNoop(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(NewMemoryStore())

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))
	require.NoError(t, fav.Remove(ctx, "1"))

	_, found, err := fav.UpdateForecast(ctx, "1", sampleBundle(21))
	require.NoError(t, err)
	assert.False(t, found)

	coll, err := fav.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, coll)
}

func TestFavorites_NeedsRefresh(t *testing.T) {
	ctx := context.Background()
	fav, clock := newTestFavorites(NewMemoryStore())

	needs, err := fav.NeedsRefresh(ctx, "absent")
	require.NoError(t, err)
	assert.True(t, needs, "absent records need a refresh")

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))
	needs, err = fav.NeedsRefresh(ctx, "1")
	require.NoError(t, err)
	assert.True(t, needs, "unfetched records need a refresh")

	_, _, err = fav.UpdateForecast(ctx, "1", sampleBundle(18))
	require.NoError(t, err)

	clock.Advance(4*time.Minute + 59*time.Second)
	needs, err = fav.NeedsRefresh(ctx, "1")
	require.NoError(t, err)
	assert.False(t, needs)

	clock.Advance(time.Second)
	needs, err = fav.NeedsRefresh(ctx, "1")
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestFavorites_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	fav, _ := newTestFavorites(blobs)

	loc := weather.Track(lisboa()).WithForecast(sampleBundle(18), testNow)
	require.NoError(t, fav.Add(ctx, loc))
	require.NoError(t, fav.Add(ctx, weather.Track(porto())))

	// A fresh store over the same blobs decodes what the first one wrote.
	restarted, _ := newTestFavorites(blobs)
	coll, err := restarted.List(ctx)
	require.NoError(t, err)
	require.Len(t, coll, 2)
	assert.Equal(t, loc, coll[0])
	assert.False(t, coll[1].Forecast.IsFetched())
}

func TestFavorites_ClearAndResetForecasts(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(NewMemoryStore())

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa()).WithForecast(sampleBundle(18), testNow)))
	require.NoError(t, fav.Add(ctx, weather.Track(porto()).WithForecast(sampleBundle(15), testNow)))

	require.NoError(t, fav.ResetForecasts(ctx))
	coll, err := fav.List(ctx)
	require.NoError(t, err)
	require.Len(t, coll, 2)
	for _, loc := range coll {
		assert.False(t, loc.Forecast.IsFetched())
		assert.True(t, loc.Forecast.UpdatedAt().IsZero())
	}

	require.NoError(t, fav.Clear(ctx))
	coll, err = fav.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, coll)
}

func TestFavorites_CustomKey(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	fav := NewFavorites(blobs, WithKey("other"))

	require.NoError(t, fav.Add(ctx, weather.Track(lisboa())))

	_, ok, err := blobs.Get(ctx, DefaultFavoritesKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = blobs.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFavorites_StorageErrors(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(failingBlobs{})

	_, err := fav.List(ctx)
	assert.ErrorIs(t, err, weather.ErrStorage)

	err = fav.Add(ctx, weather.Track(lisboa()))
	assert.ErrorIs(t, err, weather.ErrStorage)

	err = fav.Remove(ctx, "1")
	assert.ErrorIs(t, err, weather.ErrStorage)

	_, err = fav.Contains(ctx, "1")
	assert.ErrorIs(t, err, weather.ErrStorage)

	_, _, err = fav.UpdateForecast(ctx, "1", sampleBundle(1))
	assert.ErrorIs(t, err, weather.ErrStorage)

	_, err = fav.NeedsRefresh(ctx, "1")
	assert.ErrorIs(t, err, weather.ErrStorage)

	assert.ErrorIs(t, fav.Clear(ctx), weather.ErrStorage)
	assert.ErrorIs(t, fav.ResetForecasts(ctx), weather.ErrStorage)
}

func TestFavorites_CorruptBlobIsStorageError(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	require.NoError(t, blobs.Set(ctx, DefaultFavoritesKey, "{not json"))

	fav, _ := newTestFavorites(blobs)
	_, err := fav.List(ctx)
	assert.ErrorIs(t, err, weather.ErrStorage)
}

func TestFavorites_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	fav, _ := newTestFavorites(NewMemoryStore())

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		require.NoError(t, fav.Add(ctx, weather.Track(weather.Location{ID: id, Name: id})))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := fav.UpdateForecast(ctx, id, sampleBundle(10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	coll, err := fav.List(ctx)
	require.NoError(t, err)
	for _, loc := range coll {
		assert.True(t, loc.Forecast.IsFetched(), "location %s lost its update", loc.ID)
	}
}
