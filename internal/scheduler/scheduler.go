package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

// StatusSource produces the status board rows.
type StatusSource interface {
	Status(ctx context.Context) ([]weather.LocationStatus, error)
}

// StatusBoard periodically re-renders the favorites status (ages and
// refresh affordances) and logs it. It only reads: it never fetches
// forecasts.
type StatusBoard struct {
	scheduler *gocron.Scheduler
	source    StatusSource
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	latest []weather.LocationStatus
}

// New creates a new StatusBoard.
func New(source StatusSource, interval time.Duration, logger *slog.Logger) *StatusBoard {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusBoard{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (b *StatusBoard) Start() error {
	if b.interval <= 0 {
		b.logger.Info("status board disabled")
		return nil
	}

	seconds := int(b.interval.Seconds())
	if seconds <= 0 {
		seconds = 30
	}

	_, err := b.scheduler.Every(seconds).Seconds().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	b.scheduler.StartAsync()
	return nil
}

// RunOnce renders the board a single time.
func (b *StatusBoard) RunOnce(ctx context.Context) {
	rows, err := b.source.Status(ctx)
	if err != nil {
		b.logger.Error("status board: read favorites failed", "error", err)
		return
	}

	b.mu.Lock()
	b.latest = rows
	b.mu.Unlock()

	refreshable := 0
	for _, row := range rows {
		if row.CanRefresh {
			refreshable++
		}
		b.logger.Debug("status board row",
			"location_id", row.ID,
			"location", row.Name,
			"age", row.Age,
			"can_refresh", row.CanRefresh,
			"condition", row.Condition,
		)
	}
	b.logger.Info("status board", "favorites", len(rows), "refreshable", refreshable)
}

// Latest returns the rows of the last render.
func (b *StatusBoard) Latest() []weather.LocationStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]weather.LocationStatus, len(b.latest))
	copy(out, b.latest)
	return out
}

// Stop stops the scheduler and cancels any future jobs.
func (b *StatusBoard) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
}
