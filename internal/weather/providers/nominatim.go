package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/DuMaciel/WeatherForecast/internal/common"
	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

const (
	// DefaultNominatimURL is the public search endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	// DefaultUserAgent identifies the application, as Nominatim's usage
	// policy requires.
	DefaultUserAgent = "WeatherForecast/1.0.0 (contact@weatherapp.com)"
	// DefaultReferer accompanies the User-Agent.
	DefaultReferer = "https://weatherforecast.app"

	nominatimLimit = 10
	unknownCountry = "N/A"
)

// Throttler spaces outbound calls.
type Throttler interface {
	Acquire(ctx context.Context) (time.Time, error)
}

// NominatimProvider resolves free-text queries to locations. Every request
// goes through the throttle first.
type NominatimProvider struct {
	name      string
	baseURL   string
	userAgent string
	referer   string
	throttle  Throttler
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimURL overrides the search endpoint.
func WithNominatimURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithIdentity sets the User-Agent and Referer headers.
func WithIdentity(userAgent, referer string) NominatimOption {
	return func(p *NominatimProvider) {
		if userAgent != "" {
			p.userAgent = userAgent
		}
		if referer != "" {
			p.referer = referer
		}
	}
}

func NewNominatimProvider(client *http.Client, throttle Throttler, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		name:      "nominatim",
		baseURL:   DefaultNominatimURL,
		userAgent: DefaultUserAgent,
		referer:   DefaultReferer,
		throttle:  throttle,
		httpCfg: HTTPClientConfig{
			Client: client,
			// A retry would spend another throttle slot; the caller decides.
			Backoff: BackoffConfig{MaxRetries: 0},
		},
		circuit: newBreaker("nominatim"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *NominatimProvider) Name() string {
	return p.name
}

type nominatimAddress struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Region       string `json:"region"`
	Province     string `json:"province"`
	Country      string `json:"country"`
	Type         string `json:"type"`
}

type nominatimPlace struct {
	PlaceID     json.Number       `json:"place_id"`
	DisplayName string            `json:"display_name"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	AddressType string            `json:"addresstype"`
	Type        string            `json:"type"`
	Address     *nominatimAddress `json:"address"`
}

// Search returns up to ten candidate locations for query, in provider order
// with duplicate ids removed.
func (p *NominatimProvider) Search(ctx context.Context, query string) ([]weather.Location, error) {
	if p.throttle != nil {
		if _, err := p.throttle.Acquire(ctx); err != nil {
			return nil, weather.NetworkError(p.name, err)
		}
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", query)
		values.Set("format", "json")
		values.Set("limit", strconv.Itoa(nominatimLimit))
		values.Set("addressdetails", "1")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Referer", p.referer)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	body, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, &weather.UpstreamError{Provider: p.name, Message: "invalid JSON: " + err.Error()}
	}

	seen := make(map[string]struct{}, len(places))
	out := make([]weather.Location, 0, len(places))
	for _, place := range places {
		loc, err := p.toLocation(place)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[loc.ID]; dup {
			continue
		}
		seen[loc.ID] = struct{}{}
		out = append(out, loc)
	}
	return out, nil
}

func (p *NominatimProvider) toLocation(place nominatimPlace) (weather.Location, error) {
	id := place.PlaceID.String()
	if id == "" {
		return weather.Location{}, &weather.UpstreamError{Provider: p.name, Message: "place without place_id"}
	}

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return weather.Location{}, &weather.UpstreamError{Provider: p.name, Message: fmt.Sprintf("place %s: invalid lat %q", id, place.Lat)}
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return weather.Location{}, &weather.UpstreamError{Provider: p.name, Message: fmt.Sprintf("place %s: invalid lon %q", id, place.Lon)}
	}

	name, _, _ := strings.Cut(place.DisplayName, ",")
	name = strings.TrimSpace(name)

	loc := weather.Location{
		ID:          id,
		Name:        name,
		Country:     unknownCountry,
		Lat:         lat,
		Lon:         lon,
		DisplayName: place.DisplayName,
		PlaceType:   place.AddressType,
	}
	if loc.PlaceType == "" {
		loc.PlaceType = place.Type
	}

	if addr := place.Address; addr != nil {
		if addr.Country != "" {
			loc.Country = addr.Country
		}
		if loc.PlaceType == "" {
			loc.PlaceType = addr.Type
		}
		// City and state are context; drop them when they repeat the name.
		if city := common.FirstNonEmpty(addr.City, addr.Town, addr.Village, addr.Municipality); !common.EqualFoldTrim(city, name) {
			loc.City = city
		}
		if state := common.FirstNonEmpty(addr.State, addr.Region, addr.Province); !common.EqualFoldTrim(state, name) {
			loc.State = state
		}
	}
	return loc, nil
}
