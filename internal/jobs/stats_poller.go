// Package jobs contains background workers that run on a schedule.
// The stats poller periodically refreshes the activity log gauges so dashboards
// and alerts see table growth without anyone hitting the stats endpoint.
// Jobs are designed to be idempotent — re-running after a crash produces the
// same result as a clean run.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nexocrm/nexo-backend/internal/db/repositories"
	"github.com/nexocrm/nexo-backend/internal/telemetry"
)

// StatsPoller refreshes activity_log_size and activity_distinct_users on a
// fixed interval.
type StatsPoller struct {
	activities *repositories.ActivityRepository
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewStatsPoller creates a poller over the activity repository.
func NewStatsPoller(activities *repositories.ActivityRepository) *StatsPoller {
	return &StatsPoller{
		activities: activities,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic refresh loop.
func (j *StatsPoller) Start(ctx context.Context, intervalMinutes int) {
	slog.Info("starting activity stats poller", "interval_minutes", intervalMinutes)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
		defer ticker.Stop()

		// Populate the gauges immediately so they are not zero until the
		// first tick.
		j.refresh(ctx)

		for {
			select {
			case <-ticker.C:
				j.refresh(ctx)
			case <-j.stopCh:
				slog.Info("activity stats poller stopped")
				return
			case <-ctx.Done():
				slog.Info("activity stats poller context cancelled")
				return
			}
		}
	}()
}

// Stop stops the refresh loop and waits for it to exit.
func (j *StatsPoller) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

// refresh reads the current counts and updates the gauges. Failures only log;
// the previous gauge values remain visible until the next successful poll.
func (j *StatsPoller) refresh(ctx context.Context) {
	total, err := j.activities.CountAll(ctx)
	if err != nil {
		slog.Warn("failed to count activity entries", "error", err)
		return
	}
	telemetry.ActivityLogSize.Set(float64(total))

	users, err := j.activities.CountDistinctUsers(ctx)
	if err != nil {
		slog.Warn("failed to count distinct activity users", "error", err)
		return
	}
	telemetry.ActivityDistinctUsers.Set(float64(users))
}
