package weather

import (
	"encoding/json"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// Location is a place returned by the geocoding provider. It is never mutated
// after creation; ID is the provider's place identifier.
type Location struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	Country     string  `json:"country"`
	Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon         float64 `json:"lon" validate:"gte=-180,lte=180"`
	DisplayName string  `json:"display_name"`
	PlaceType   string  `json:"type,omitempty"`
}

// CurrentConditions is the "current" block of a forecast.
type CurrentConditions struct {
	Time             string  `json:"time"`
	Temperature      float64 `json:"temperature_2m"`
	RelativeHumidity float64 `json:"relative_humidity_2m"`
	Precipitation    float64 `json:"precipitation"`
	WeatherCode      int     `json:"weather_code"`
}

// HourlySeries holds index-aligned hourly sequences.
type HourlySeries struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	RelativeHumidity         []float64 `json:"relative_humidity_2m"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	WeatherCode              []int     `json:"weather_code"`
}

// Len returns the shared length of the series, or -1 when the sequences
// disagree.
func (h HourlySeries) Len() int {
	n := len(h.Time)
	if len(h.Temperature) != n || len(h.RelativeHumidity) != n ||
		len(h.PrecipitationProbability) != n || len(h.WeatherCode) != n {
		return -1
	}
	return n
}

// DailySeries holds index-aligned daily sequences.
type DailySeries struct {
	Time                        []string  `json:"time"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
	WeatherCode                 []int     `json:"weather_code"`
}

// Len returns the shared length of the series, or -1 when the sequences
// disagree.
func (d DailySeries) Len() int {
	n := len(d.Time)
	if len(d.TemperatureMax) != n || len(d.TemperatureMin) != n ||
		len(d.PrecipitationProbabilityMax) != n || len(d.WeatherCode) != n {
		return -1
	}
	return n
}

// ForecastBundle is the current/hourly/daily payload for one coordinate pair.
// Timestamps are kept exactly as the provider sent them (local time of the
// forecast point, no zone suffix).
type ForecastBundle struct {
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	Timezone         string            `json:"timezone,omitempty"`
	UTCOffsetSeconds int               `json:"utc_offset_seconds"`
	Current          CurrentConditions `json:"current"`
	Hourly           HourlySeries      `json:"hourly"`
	Daily            DailySeries       `json:"daily"`
}

// Freshness is either Unfetched or Fetched{bundle, at}. The zero value is
// Unfetched, so a timestamp can never exist without data.
type Freshness struct {
	bundle *ForecastBundle
	at     time.Time
}

// Unfetched returns the state of a location that has no cached forecast.
func Unfetched() Freshness {
	return Freshness{}
}

// Fetched returns the state of a location whose forecast was fetched at at.
func Fetched(bundle ForecastBundle, at time.Time) Freshness {
	return Freshness{bundle: &bundle, at: at.UTC()}
}

// Bundle returns the cached forecast, if any.
func (f Freshness) Bundle() (ForecastBundle, bool) {
	if f.bundle == nil {
		return ForecastBundle{}, false
	}
	return *f.bundle, true
}

// UpdatedAt returns the time of the last successful fetch, or the zero time
// when unfetched.
func (f Freshness) UpdatedAt() time.Time {
	if f.bundle == nil {
		return time.Time{}
	}
	return f.at
}

// IsFetched reports whether a forecast is cached.
func (f Freshness) IsFetched() bool {
	return f.bundle != nil
}

// TrackedLocation is a Location the user saved, plus its last known forecast.
type TrackedLocation struct {
	Location
	Forecast Freshness `json:"-"`
}

// Track wraps a location with no cached forecast.
func Track(loc Location) TrackedLocation {
	return TrackedLocation{Location: loc}
}

// trackedJSON is the persisted shape: location fields flattened next to the
// optional weatherData/lastUpdated pair.
type trackedJSON struct {
	Location
	WeatherData *ForecastBundle `json:"weatherData,omitempty"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
}

// MarshalJSON writes weatherData and lastUpdated together or not at all.
func (t TrackedLocation) MarshalJSON() ([]byte, error) {
	out := trackedJSON{Location: t.Location}
	if bundle, ok := t.Forecast.Bundle(); ok {
		at := t.Forecast.UpdatedAt()
		out.WeatherData = &bundle
		out.LastUpdated = &at
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the pair. A record carrying only one half of the
// pair is read as Unfetched.
func (t *TrackedLocation) UnmarshalJSON(data []byte) error {
	var in trackedJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Location = in.Location
	t.Forecast = Unfetched()
	if in.WeatherData != nil && in.LastUpdated != nil {
		t.Forecast = Fetched(*in.WeatherData, *in.LastUpdated)
	}
	return nil
}

// WithForecast returns a copy of t holding bundle fetched at at.
func (t TrackedLocation) WithForecast(bundle ForecastBundle, at time.Time) TrackedLocation {
	t.Forecast = Fetched(bundle, at)
	return t
}
