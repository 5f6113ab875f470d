package activity

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// PercentChange
// ---------------------------------------------------------------------------

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name           string
		current, prior int64
		want           float64
	}{
		{"growth", 100, 80, 25},
		{"decline", 80, 100, -20},
		{"flat", 50, 50, 0},
		{"zero prior guards division", 50, 0, 0},
		{"both zero", 0, 0, 0},
		{"drop to zero", 0, 40, -100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PercentChange(tc.current, tc.prior); got != tc.want {
				t.Errorf("PercentChange(%d, %d) = %v, want %v", tc.current, tc.prior, got, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// clampLimit
// ---------------------------------------------------------------------------

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, defaultTimelineLimit},
		{-5, defaultTimelineLimit},
		{10, 10},
		{maxTimelineLimit, maxTimelineLimit},
		{maxTimelineLimit + 1, maxTimelineLimit},
	}
	for _, tc := range cases {
		if got := clampLimit(tc.in); got != tc.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// GetStats
// ---------------------------------------------------------------------------

func newStatsService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(repositories.NewActivityRepository(sqlx.NewDb(db, "postgres"))), mock
}

func countRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestGetStats_ComputesChanges(t *testing.T) {
	svc, mock := newStatsService(t)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").WillReturnRows(countRows(1000))
	mock.ExpectQuery("SELECT COUNT\\(DISTINCT user_id\\)").WillReturnRows(countRows(12))
	// Trailing windows: 24h, 7d, 14d, 30d.
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(100))
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(400))
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(600))
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(900))
	// Prior windows: previous 24h, previous 7d.
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(80))
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(200))
	mock.ExpectQuery("SELECT action AS key").WillReturnRows(
		sqlmock.NewRows([]string{"key", "count"}).AddRow("CREATE", 300))
	mock.ExpectQuery("SELECT entity_type AS key").WillReturnRows(
		sqlmock.NewRows([]string{"key", "count"}).AddRow("lead", 500))
	mock.ExpectQuery("SELECT user_id, MAX\\(user_name\\)").WillReturnRows(
		sqlmock.NewRows([]string{"user_id", "user_name", "count"}).AddRow("U1", "Ana Silva", 321))
	mock.ExpectQuery("SELECT EXTRACT\\(HOUR").WillReturnRows(
		sqlmock.NewRows([]string{"bucket", "count"}).AddRow("9", 50))
	mock.ExpectQuery("SELECT TO_CHAR\\(DATE_TRUNC").WillReturnRows(
		sqlmock.NewRows([]string{"bucket", "count"}).AddRow("2026-08-30", 70))

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Total != 1000 {
		t.Errorf("Total = %d, want 1000", stats.Total)
	}
	if stats.DistinctUsers != 12 {
		t.Errorf("DistinctUsers = %d, want 12", stats.DistinctUsers)
	}
	// (100-80)/80*100 = +25%
	if stats.DailyChangePct != 25 {
		t.Errorf("DailyChangePct = %v, want 25", stats.DailyChangePct)
	}
	// (400-200)/200*100 = +100%
	if stats.WeeklyChangePct != 100 {
		t.Errorf("WeeklyChangePct = %v, want 100", stats.WeeklyChangePct)
	}
	if len(stats.TopActions) != 1 || stats.TopActions[0].Key != "CREATE" {
		t.Errorf("TopActions = %+v", stats.TopActions)
	}
	if len(stats.ByDay) != 1 || stats.ByDay[0].Count != 70 {
		t.Errorf("ByDay = %+v", stats.ByDay)
	}
}

func TestGetStats_ZeroPriorPeriodYieldsZeroChange(t *testing.T) {
	svc, mock := newStatsService(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").WillReturnRows(countRows(50))
	mock.ExpectQuery("SELECT COUNT\\(DISTINCT user_id\\)").WillReturnRows(countRows(3))
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(50)) // 24h
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(50)) // 7d
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(50)) // 14d
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(50)) // 30d
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(0))  // prev 24h
	mock.ExpectQuery("SELECT COUNT.*WHERE created_at").WillReturnRows(countRows(0))  // prev 7d
	mock.ExpectQuery("SELECT action AS key").WillReturnRows(sqlmock.NewRows([]string{"key", "count"}))
	mock.ExpectQuery("SELECT entity_type AS key").WillReturnRows(sqlmock.NewRows([]string{"key", "count"}))
	mock.ExpectQuery("SELECT user_id, MAX\\(user_name\\)").WillReturnRows(
		sqlmock.NewRows([]string{"user_id", "user_name", "count"}))
	mock.ExpectQuery("SELECT EXTRACT\\(HOUR").WillReturnRows(sqlmock.NewRows([]string{"bucket", "count"}))
	mock.ExpectQuery("SELECT TO_CHAR\\(DATE_TRUNC").WillReturnRows(sqlmock.NewRows([]string{"bucket", "count"}))

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DailyChangePct != 0 {
		t.Errorf("DailyChangePct = %v, want 0 (guarded)", stats.DailyChangePct)
	}
	if stats.WeeklyChangePct != 0 {
		t.Errorf("WeeklyChangePct = %v, want 0 (guarded)", stats.WeeklyChangePct)
	}
}

func TestGetStats_CountError(t *testing.T) {
	svc, mock := newStatsService(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").
		WillReturnError(context.DeadlineExceeded)

	if _, err := svc.GetStats(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Timelines
// ---------------------------------------------------------------------------

func TestGetEntityActivities_AppliesLimitClamp(t *testing.T) {
	svc, mock := newStatsService(t)
	mock.ExpectQuery("SELECT(.|\n)*WHERE a.entity_type").
		WithArgs("lead", "L1", maxTimelineLimit).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "action", "entity_type", "entity_id", "entity_name",
			"user_id", "user_name", "description", "metadata",
			"ip_address", "user_agent", "created_at", "avatar_url",
		}))

	if _, err := svc.GetEntityActivities(context.Background(), "lead", "L1", 5000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
