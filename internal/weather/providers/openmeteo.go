package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

// DefaultOpenMeteoURL is the public forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

const (
	openMeteoCurrent = "temperature_2m,relative_humidity_2m,precipitation,weather_code"
	openMeteoHourly  = "temperature_2m,relative_humidity_2m,precipitation_probability,weather_code"
	openMeteoDaily   = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weather_code"
	forecastDays     = 7
)

// OpenMeteoProvider fetches current/hourly/daily forecasts from Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// OpenMeteoOption configures an OpenMeteoProvider.
type OpenMeteoOption func(*OpenMeteoProvider)

// WithOpenMeteoURL overrides the forecast endpoint.
func WithOpenMeteoURL(u string) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithOpenMeteoRetries sets how many times a retryable failure is retried.
func WithOpenMeteoRetries(n int) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		p.httpCfg.Backoff.MaxRetries = n
	}
}

func NewOpenMeteoProvider(client *http.Client, opts ...OpenMeteoOption) *OpenMeteoProvider {
	p := &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: DefaultOpenMeteoURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      1,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newBreaker("openmeteo"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// openMeteoPayload mirrors the response. The blocks are pointers so a missing
// block can be told apart from an empty one.
type openMeteoPayload struct {
	Latitude         float64                    `json:"latitude"`
	Longitude        float64                    `json:"longitude"`
	Timezone         string                     `json:"timezone"`
	UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
	Current          *weather.CurrentConditions `json:"current"`
	Hourly           *weather.HourlySeries      `json:"hourly"`
	Daily            *weather.DailySeries       `json:"daily"`
}

// Fetch returns the forecast bundle for a coordinate pair.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (weather.ForecastBundle, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("current", openMeteoCurrent)
		values.Set("hourly", openMeteoHourly)
		values.Set("daily", openMeteoDaily)
		values.Set("timezone", "auto")
		values.Set("forecast_days", strconv.Itoa(forecastDays))

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	body, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ForecastBundle{}, err
	}

	var payload openMeteoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ForecastBundle{}, &weather.UpstreamError{Provider: p.name, Message: "invalid JSON: " + err.Error()}
	}

	switch {
	case payload.Current == nil:
		return weather.ForecastBundle{}, weather.ParseError(p.name, "missing current block")
	case payload.Hourly == nil:
		return weather.ForecastBundle{}, weather.ParseError(p.name, "missing hourly block")
	case payload.Daily == nil:
		return weather.ForecastBundle{}, weather.ParseError(p.name, "missing daily block")
	}

	bundle := weather.ForecastBundle{
		Latitude:         payload.Latitude,
		Longitude:        payload.Longitude,
		Timezone:         payload.Timezone,
		UTCOffsetSeconds: payload.UTCOffsetSeconds,
		Current:          *payload.Current,
		Hourly:           *payload.Hourly,
		Daily:            *payload.Daily,
	}
	if err := bundle.Validate(); err != nil {
		return weather.ForecastBundle{}, weather.ParseError(p.name, err.Error())
	}
	return bundle, nil
}
