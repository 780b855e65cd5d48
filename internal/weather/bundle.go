package weather

import (
	"errors"
	"time"
)

// Layouts accepted for provider timestamps. Open-Meteo sends local wall-clock
// times without a zone when timezone=auto.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseLocalTime parses a provider timestamp as a wall-clock time.
func ParseLocalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range localLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Validate checks that the parallel series of the bundle are index-aligned.
func (b ForecastBundle) Validate() error {
	if b.Hourly.Len() < 0 {
		return errors.New("hourly series have different lengths")
	}
	if b.Daily.Len() < 0 {
		return errors.New("daily series have different lengths")
	}
	return nil
}

// HourlyEntry is one row of the hourly series.
type HourlyEntry struct {
	Time                     string    `json:"time"`
	Temperature              float64   `json:"temperature"`
	RelativeHumidity         float64   `json:"humidity"`
	PrecipitationProbability float64   `json:"precipitationProbability"`
	WeatherCode              int       `json:"weatherCode"`
	Condition                Condition `json:"condition"`
}

// DailyEntry is one row of the daily series.
type DailyEntry struct {
	Time                        string    `json:"time"`
	TemperatureMax              float64   `json:"temperatureMax"`
	TemperatureMin              float64   `json:"temperatureMin"`
	PrecipitationProbabilityMax float64   `json:"precipitationProbabilityMax"`
	WeatherCode                 int       `json:"weatherCode"`
	Condition                   Condition `json:"condition"`
}

// localNow converts an instant to the wall clock of the forecast point.
func (b ForecastBundle) localNow(now time.Time) time.Time {
	return now.UTC().Add(time.Duration(b.UTCOffsetSeconds) * time.Second)
}

// NextHours returns up to n hourly entries starting at the current local hour.
func (b ForecastBundle) NextHours(now time.Time, n int) []HourlyEntry {
	start := b.localNow(now).Truncate(time.Hour)
	out := make([]HourlyEntry, 0, n)
	if b.Hourly.Len() < 0 {
		return out
	}

	for i, ts := range b.Hourly.Time {
		if len(out) >= n {
			break
		}
		t, err := ParseLocalTime(ts)
		if err != nil || t.Before(start) {
			continue
		}
		out = append(out, HourlyEntry{
			Time:                     ts,
			Temperature:              b.Hourly.Temperature[i],
			RelativeHumidity:         b.Hourly.RelativeHumidity[i],
			PrecipitationProbability: b.Hourly.PrecipitationProbability[i],
			WeatherCode:              b.Hourly.WeatherCode[i],
			Condition:                ConditionFor(b.Hourly.WeatherCode[i]),
		})
	}
	return out
}

// NextDays returns up to n daily entries starting today, local time.
func (b ForecastBundle) NextDays(now time.Time, n int) []DailyEntry {
	local := b.localNow(now)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]DailyEntry, 0, n)
	if b.Daily.Len() < 0 {
		return out
	}

	for i, ts := range b.Daily.Time {
		if len(out) >= n {
			break
		}
		t, err := ParseLocalTime(ts)
		if err != nil || t.Before(today) {
			continue
		}
		out = append(out, DailyEntry{
			Time:                        ts,
			TemperatureMax:              b.Daily.TemperatureMax[i],
			TemperatureMin:              b.Daily.TemperatureMin[i],
			PrecipitationProbabilityMax: b.Daily.PrecipitationProbabilityMax[i],
			WeatherCode:                 b.Daily.WeatherCode[i],
			Condition:                   ConditionFor(b.Daily.WeatherCode[i]),
		})
	}
	return out
}
