package weather

import (
	"context"
	"time"
)

// Display windows of the detail view.
const (
	DetailHours = 24
	DetailDays  = 7
)

// LocationStatus is one row of the status board.
type LocationStatus struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Country     string     `json:"country"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Age         string     `json:"age"`
	CanRefresh  bool       `json:"canRefresh"`
	Temperature *float64   `json:"temperature,omitempty"`
	Condition   Condition  `json:"condition"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
}

// ForecastView is the detail projection of one favorite.
type ForecastView struct {
	Location    Location           `json:"location"`
	LastUpdated *time.Time         `json:"lastUpdated,omitempty"`
	Age         string             `json:"age"`
	CanRefresh  bool               `json:"canRefresh"`
	Current     *CurrentConditions `json:"current,omitempty"`
	Description string             `json:"description,omitempty"`
	Icon        string             `json:"icon,omitempty"`
	Hourly      []HourlyEntry      `json:"hourly"`
	Daily       []DailyEntry       `json:"daily"`
}

// StatusOf builds the status row of loc at now. It never touches the network.
func (s *Service) StatusOf(loc TrackedLocation, now time.Time) LocationStatus {
	st := LocationStatus{
		ID:         loc.ID,
		Name:       loc.Name,
		Country:    loc.Country,
		Age:        HumanizeAge(loc.Forecast.UpdatedAt(), now),
		CanRefresh: s.manual.IsStale(loc.Forecast.UpdatedAt(), now),
		Condition:  ConditionUnknown,
	}

	bundle, ok := loc.Forecast.Bundle()
	if !ok {
		return st
	}

	at := loc.Forecast.UpdatedAt()
	temp := bundle.Current.Temperature
	st.LastUpdated = &at
	st.Temperature = &temp
	st.Condition = ConditionFor(bundle.Current.WeatherCode)
	st.Description = Description(bundle.Current.WeatherCode)
	st.Icon = Icon(bundle.Current.WeatherCode, bundle.Current.Time, now)
	return st
}

// Status returns the status board of every favorite, in collection order.
func (s *Service) Status(ctx context.Context) ([]LocationStatus, error) {
	coll, err := s.favorites.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]LocationStatus, 0, len(coll))
	for _, loc := range coll {
		out = append(out, s.StatusOf(loc, now))
	}
	return out, nil
}

// Forecast returns the detail projection of the favorite id.
func (s *Service) Forecast(ctx context.Context, id string) (ForecastView, error) {
	loc, ok, err := s.favorites.Get(ctx, id)
	if err != nil {
		return ForecastView{}, err
	}
	if !ok {
		return ForecastView{}, ErrNotTracked
	}

	now := s.now()
	view := ForecastView{
		Location:   loc.Location,
		Age:        HumanizeAge(loc.Forecast.UpdatedAt(), now),
		CanRefresh: s.manual.IsStale(loc.Forecast.UpdatedAt(), now),
		Hourly:     []HourlyEntry{},
		Daily:      []DailyEntry{},
	}

	bundle, ok := loc.Forecast.Bundle()
	if !ok {
		return view, nil
	}

	at := loc.Forecast.UpdatedAt()
	current := bundle.Current
	view.LastUpdated = &at
	view.Current = &current
	view.Description = Description(current.WeatherCode)
	view.Icon = Icon(current.WeatherCode, current.Time, now)
	view.Hourly = bundle.NextHours(now, DetailHours)
	view.Daily = bundle.NextDays(now, DetailDays)
	return view, nil
}
