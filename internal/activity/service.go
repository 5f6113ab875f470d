// service.go implements the read side of the activity log: recent activity,
// per-entity and per-user timelines, and the aggregate statistics behind the
// dashboard.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/nexocrm/nexo-backend/internal/db/models"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

const (
	defaultTimelineLimit = 20
	maxTimelineLimit     = 100
	topN                 = 5
)

// Service answers queries over the activity log. It never writes.
type Service struct {
	activities *repositories.ActivityRepository

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a query Service over the activity repository.
func NewService(activities *repositories.ActivityRepository) *Service {
	return &Service{activities: activities, now: time.Now}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTimelineLimit
	}
	if limit > maxTimelineLimit {
		return maxTimelineLimit
	}
	return limit
}

// GetRecentActivities returns the newest entries, optionally narrowed to an
// entity type and/or a specific entity, with actor display info joined.
func (s *Service) GetRecentActivities(ctx context.Context, limit int, entityType, entityID *string) ([]*models.SystemActivity, error) {
	return s.activities.ListRecent(ctx, entityType, entityID, clampLimit(limit))
}

// GetEntityActivities returns the full history of one object, newest first —
// the data behind an object's timeline view.
func (s *Service) GetEntityActivities(ctx context.Context, entityType, entityID string, limit int) ([]*models.SystemActivity, error) {
	return s.activities.ListByEntity(ctx, entityType, entityID, clampLimit(limit))
}

// GetUserActivities returns the history of one actor's actions, newest first.
func (s *Service) GetUserActivities(ctx context.Context, userID string, limit int) ([]*models.SystemActivity, error) {
	return s.activities.ListByUser(ctx, userID, clampLimit(limit))
}

// Stats is the aggregate view rendered on the activity dashboard.
type Stats struct {
	Total         int64 `json:"total"`
	DistinctUsers int64 `json:"distinctUsers"`

	Last24h int64 `json:"last24h"`
	Last7d  int64 `json:"last7d"`
	Last14d int64 `json:"last14d"`
	Last30d int64 `json:"last30d"`

	// DailyChangePct compares the trailing 24 hours with the 24 hours before
	// that; WeeklyChangePct compares the trailing 7 days with the 7 days
	// before that. A zero prior period yields 0, never a division error.
	DailyChangePct  float64 `json:"dailyChangePct"`
	WeeklyChangePct float64 `json:"weeklyChangePct"`

	TopActions     []repositories.ActionCount       `json:"topActions"`
	TopEntityTypes []repositories.ActionCount       `json:"topEntityTypes"`
	TopUsers       []repositories.UserActivityCount `json:"topUsers"`

	// ByHour buckets the trailing week by hour of day (0–23); ByDay buckets
	// it by calendar day.
	ByHour []repositories.BucketCount `json:"byHour"`
	ByDay  []repositories.BucketCount `json:"byDay"`
}

// PercentChange returns the percentage delta from prior to current. A prior
// count of 0 yields 0 regardless of current.
func PercentChange(current, prior int64) float64 {
	if prior == 0 {
		return 0
	}
	return float64(current-prior) / float64(prior) * 100
}

// GetStats computes the aggregate statistics in one pass over the repository.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	now := s.now()
	stats := &Stats{}

	var err error
	if stats.Total, err = s.activities.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	if stats.DistinctUsers, err = s.activities.CountDistinctUsers(ctx); err != nil {
		return nil, fmt.Errorf("failed to count distinct users: %w", err)
	}

	windows := []struct {
		days int
		dst  *int64
	}{
		{1, &stats.Last24h},
		{7, &stats.Last7d},
		{14, &stats.Last14d},
		{30, &stats.Last30d},
	}
	for _, w := range windows {
		count, err := s.activities.CountBetween(ctx, now.AddDate(0, 0, -w.days), now)
		if err != nil {
			return nil, fmt.Errorf("failed to count trailing %dd window: %w", w.days, err)
		}
		*w.dst = count
	}

	prev24h, err := s.activities.CountBetween(ctx, now.AddDate(0, 0, -2), now.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to count previous 24h window: %w", err)
	}
	prev7d, err := s.activities.CountBetween(ctx, now.AddDate(0, 0, -14), now.AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("failed to count previous 7d window: %w", err)
	}

	stats.DailyChangePct = PercentChange(stats.Last24h, prev24h)
	stats.WeeklyChangePct = PercentChange(stats.Last7d, prev7d)

	if stats.TopActions, err = s.activities.TopActions(ctx, topN); err != nil {
		return nil, fmt.Errorf("failed to rank actions: %w", err)
	}
	if stats.TopEntityTypes, err = s.activities.TopEntityTypes(ctx, topN); err != nil {
		return nil, fmt.Errorf("failed to rank entity types: %w", err)
	}
	if stats.TopUsers, err = s.activities.TopUsers(ctx, topN); err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}

	weekAgo := now.AddDate(0, 0, -7)
	if stats.ByHour, err = s.activities.HistogramByHour(ctx, weekAgo); err != nil {
		return nil, fmt.Errorf("failed to bucket by hour: %w", err)
	}
	if stats.ByDay, err = s.activities.HistogramByDay(ctx, weekAgo); err != nil {
		return nil, fmt.Errorf("failed to bucket by day: %w", err)
	}

	return stats, nil
}
