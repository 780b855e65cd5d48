package weather

import (
	"fmt"
	"time"
)

// DefaultRefreshInterval is the age at which a cached forecast becomes stale.
const DefaultRefreshInterval = 5 * time.Minute

// StalenessPolicy decides whether a cached forecast may be refreshed.
type StalenessPolicy struct {
	Threshold time.Duration
}

// NewStalenessPolicy returns a policy with the given threshold; a
// non-positive threshold falls back to DefaultRefreshInterval.
func NewStalenessPolicy(threshold time.Duration) StalenessPolicy {
	if threshold <= 0 {
		threshold = DefaultRefreshInterval
	}
	return StalenessPolicy{Threshold: threshold}
}

// IsStale reports whether a forecast last updated at lastUpdated must be
// refreshed at now. A zero lastUpdated means never fetched.
func (p StalenessPolicy) IsStale(lastUpdated, now time.Time) bool {
	if lastUpdated.IsZero() {
		return true
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultRefreshInterval
	}
	return now.Sub(lastUpdated) >= threshold
}

// ageDateLayout is used once an update is a day old or more.
const ageDateLayout = "Jan 2, 15:04"

// HumanizeAge renders the age of an update for display.
func HumanizeAge(lastUpdated, now time.Time) string {
	if lastUpdated.IsZero() {
		return "never updated"
	}

	secs := int(now.Sub(lastUpdated) / time.Second)
	if secs < 30 {
		return "just now"
	}
	if secs < 60 {
		return fmt.Sprintf("%ds ago", secs)
	}

	mins := secs / 60
	if mins < 60 {
		return fmt.Sprintf("%d min ago", mins)
	}

	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	return lastUpdated.Local().Format(ageDateLayout)
}
