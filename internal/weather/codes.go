package weather

import "time"

// Weather codes follow the WMO interpretation table used by Open-Meteo.
var codeDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// UnknownDescription is returned for codes outside the table.
const UnknownDescription = "Unknown condition"

// Description returns the text for a weather code.
func Description(code int) string {
	if d, ok := codeDescriptions[code]; ok {
		return d
	}
	return UnknownDescription
}

const (
	iconSun        = "☀️"
	iconMoon       = "🌙"
	iconCloudDay   = "⛅"
	iconCloudNight = "☁️"
	iconFog        = "🌫️"
	iconRain       = "🌧️"
	iconSnow       = "❄️"
	iconStorm      = "⛈️"
	iconDay        = "🌤️"
	iconNight      = "🌃"
)

// Icon returns the glyph for a weather code. The day/night branch uses the
// hour of atTime when it parses, and the hour of now otherwise.
func Icon(code int, atTime string, now time.Time) string {
	hour := now.Hour()
	if t, err := ParseLocalTime(atTime); err == nil {
		hour = t.Hour()
	}
	return IconForHour(code, hour)
}

// IconForHour returns the glyph for a weather code observed at hour (0-23).
func IconForHour(code, hour int) string {
	night := hour < 6 || hour >= 18

	switch {
	case code == 0 || code == 1:
		if night {
			return iconMoon
		}
		return iconSun
	case code == 2 || code == 3:
		if night {
			return iconCloudNight
		}
		return iconCloudDay
	case code >= 45 && code <= 48:
		return iconFog
	case code >= 51 && code <= 65:
		return iconRain
	case code >= 71 && code <= 75:
		return iconSnow
	case code >= 80 && code <= 82:
		// Showers use the plain rain glyph, never sun-behind-rain.
		return iconRain
	case code >= 95 && code <= 99:
		return iconStorm
	}

	if night {
		return iconNight
	}
	return iconDay
}

// ConditionFor maps a weather code to a coarse Condition.
func ConditionFor(code int) Condition {
	switch {
	case code == 0 || code == 1:
		return ConditionClear
	case code == 2 || code == 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}
