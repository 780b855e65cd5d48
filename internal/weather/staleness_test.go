package weather

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIsStale_Boundary(t *testing.T) {
	p := NewStalenessPolicy(DefaultRefreshInterval)

	assert.True(t, p.IsStale(time.Time{}, refNow), "never fetched")
	assert.True(t, p.IsStale(refNow.Add(-5*time.Minute), refNow))
	assert.False(t, p.IsStale(refNow.Add(-(4*time.Minute+59*time.Second)), refNow))
	assert.False(t, p.IsStale(refNow, refNow))
	assert.True(t, p.IsStale(refNow.Add(-time.Hour), refNow))
}

func TestIsStale_CustomThreshold(t *testing.T) {
	p := NewStalenessPolicy(time.Minute)

	assert.False(t, p.IsStale(refNow.Add(-59*time.Second), refNow))
	assert.True(t, p.IsStale(refNow.Add(-time.Minute), refNow))
}

func TestNewStalenessPolicy_Default(t *testing.T) {
	assert.Equal(t, DefaultRefreshInterval, NewStalenessPolicy(0).Threshold)
	assert.Equal(t, DefaultRefreshInterval, NewStalenessPolicy(-time.Second).Threshold)

	// The zero value behaves like the default.
	var zero StalenessPolicy
	assert.True(t, zero.IsStale(refNow.Add(-5*time.Minute), refNow))
	assert.False(t, zero.IsStale(refNow.Add(-time.Minute), refNow))
}

func TestHumanizeAge(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{0, "just now"},
		{29 * time.Second, "just now"},
		{30 * time.Second, "30s ago"},
		{59 * time.Second, "59s ago"},
		{60 * time.Second, "1 min ago"},
		{3599 * time.Second, "59 min ago"},
		{3600 * time.Second, "1h ago"},
		{86399 * time.Second, "23h ago"},
	}

	for _, tt := range tests {
		t.Run(tt.offset.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HumanizeAge(refNow.Add(-tt.offset), refNow))
		})
	}
}

func TestHumanizeAge_DateAfterADay(t *testing.T) {
	last := refNow.Add(-86400 * time.Second)
	got := HumanizeAge(last, refNow)

	assert.Equal(t, last.Local().Format(ageDateLayout), got)
	assert.False(t, strings.HasSuffix(got, "ago"))
}

func TestHumanizeAge_Never(t *testing.T) {
	assert.Equal(t, "never updated", HumanizeAge(time.Time{}, refNow))
}
