// activity_repository.go implements ActivityRepository, providing database
// queries for writing and retrieving system activity entries with filtered
// listing, per-entity and per-user timelines, and the grouped aggregations
// behind the stats endpoint.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexocrm/nexo-backend/internal/db/models"
)

// ActivityRepository handles system activity database operations. It owns the
// serialization boundary: metadata is a structured map everywhere else and
// only becomes JSON text inside this type.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ActivityFilters contains optional filters for listing activities.
type ActivityFilters struct {
	Search     *string
	Action     *string
	EntityType *string
	EntityID   *string
	UserID     *string
	UserName   *string
	StartDate  *time.Time
	EndDate    *time.Time
}

// activityColumns is the canonical select list, joined with the actor's
// avatar for rendering.
const activityColumns = `
	a.id, a.action, a.entity_type, a.entity_id, a.entity_name,
	a.user_id, a.user_name, a.description, a.metadata,
	a.ip_address, a.user_agent, a.created_at, u.avatar_url
`

// Create inserts one activity row. ID and CreatedAt are assigned here, at
// write time; the row is never touched again.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.SystemActivity) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()

	var metadataJSON sql.NullString
	if entry.Metadata != nil {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO system_activities (
			id, action, entity_type, entity_id, entity_name,
			user_id, user_name, description, metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.EntityName,
		entry.UserID,
		entry.UserName,
		entry.Description,
		metadataJSON,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// List retrieves activities with optional filters, newest first, and the
// total matching count for the pagination envelope.
func (r *ActivityRepository) List(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*models.SystemActivity, int, error) {
	countQuery := `SELECT COUNT(*) FROM system_activities a WHERE 1=1`
	query := `
		SELECT ` + activityColumns + `
		FROM system_activities a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		cond := fmt.Sprintf(clause, paramIndex)
		countQuery += cond
		query += cond
		args = append(args, value)
		paramIndex++
	}

	if filters.Search != nil {
		addFilter(` AND (a.description ILIKE $%[1]d OR a.entity_name ILIKE $%[1]d OR a.user_name ILIKE $%[1]d)`,
			"%"+*filters.Search+"%")
	}
	if filters.Action != nil {
		addFilter(` AND a.action = $%d`, *filters.Action)
	}
	if filters.EntityType != nil {
		addFilter(` AND a.entity_type = $%d`, *filters.EntityType)
	}
	if filters.EntityID != nil {
		addFilter(` AND a.entity_id = $%d`, *filters.EntityID)
	}
	if filters.UserID != nil {
		addFilter(` AND a.user_id = $%d`, *filters.UserID)
	}
	if filters.UserName != nil {
		addFilter(` AND a.user_name ILIKE $%d`, "%"+*filters.UserName+"%")
	}
	if filters.StartDate != nil {
		addFilter(` AND a.created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND a.created_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	query += fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	entries, err := r.queryActivities(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListByEntity retrieves the newest entries for one specific entity.
func (r *ActivityRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.SystemActivity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM system_activities a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.entity_type = $1 AND a.entity_id = $2
		ORDER BY a.created_at DESC
		LIMIT $3
	`
	return r.queryActivities(ctx, query, entityType, entityID, limit)
}

// ListByUser retrieves the newest entries recorded by one actor.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.SystemActivity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM system_activities a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`
	return r.queryActivities(ctx, query, userID, limit)
}

// ListRecent retrieves the newest entries, optionally narrowed to an entity
// type and/or a specific entity.
func (r *ActivityRepository) ListRecent(ctx context.Context, entityType, entityID *string, limit int) ([]*models.SystemActivity, error) {
	filters := ActivityFilters{EntityType: entityType, EntityID: entityID}
	entries, _, err := r.List(ctx, filters, limit, 0)
	return entries, err
}

// queryActivities runs a select over the canonical column list and scans the
// rows, deserializing metadata back to its structured form.
func (r *ActivityRepository) queryActivities(ctx context.Context, query string, args ...interface{}) ([]*models.SystemActivity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.SystemActivity, 0)
	for rows.Next() {
		entry := &models.SystemActivity{}
		var metadataJSON sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.EntityName,
			&entry.UserID,
			&entry.UserName,
			&entry.Description,
			&metadataJSON,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
			&entry.UserAvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Aggregations backing the stats endpoint
// ---------------------------------------------------------------------------

// ActionCount is one row of a grouped count by action or entity type.
type ActionCount struct {
	Key   string `db:"key" json:"key"`
	Count int64  `db:"count" json:"count"`
}

// UserActivityCount is one row of the most-active-users breakdown.
type UserActivityCount struct {
	UserID   string `db:"user_id" json:"userId"`
	UserName string `db:"user_name" json:"userName"`
	Count    int64  `db:"count" json:"count"`
}

// BucketCount is one bucket of a time histogram. For the hour-of-day
// histogram Bucket is 0–23; for the calendar-day histogram it is the day
// formatted as 2006-01-02.
type BucketCount struct {
	Bucket string `db:"bucket" json:"bucket"`
	Count  int64  `db:"count" json:"count"`
}

// CountAll returns the total number of activity entries.
func (r *ActivityRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM system_activities`)
	return total, err
}

// CountDistinctUsers returns the number of distinct actors in the log.
func (r *ActivityRepository) CountDistinctUsers(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(DISTINCT user_id) FROM system_activities`)
	return total, err
}

// CountBetween returns the number of entries with from <= created_at < to.
func (r *ActivityRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM system_activities WHERE created_at >= $1 AND created_at < $2`, from, to)
	return total, err
}

// TopActions returns the n most frequent actions.
func (r *ActivityRepository) TopActions(ctx context.Context, n int) ([]ActionCount, error) {
	counts := make([]ActionCount, 0, n)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT action AS key, COUNT(*) AS count
		FROM system_activities
		GROUP BY action
		ORDER BY count DESC, key ASC
		LIMIT $1
	`, n)
	return counts, err
}

// TopEntityTypes returns the n most frequently touched entity types.
func (r *ActivityRepository) TopEntityTypes(ctx context.Context, n int) ([]ActionCount, error) {
	counts := make([]ActionCount, 0, n)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT entity_type AS key, COUNT(*) AS count
		FROM system_activities
		GROUP BY entity_type
		ORDER BY count DESC, key ASC
		LIMIT $1
	`, n)
	return counts, err
}

// TopUsers returns the n most active users. The denormalized user_name of the
// newest entry is used for display so renamed users show their current name
// going forward without rewriting history.
func (r *ActivityRepository) TopUsers(ctx context.Context, n int) ([]UserActivityCount, error) {
	counts := make([]UserActivityCount, 0, n)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT user_id, MAX(user_name) AS user_name, COUNT(*) AS count
		FROM system_activities
		GROUP BY user_id
		ORDER BY count DESC
		LIMIT $1
	`, n)
	return counts, err
}

// HistogramByHour returns entry counts grouped by hour of day (0–23) for
// entries newer than since.
func (r *ActivityRepository) HistogramByHour(ctx context.Context, since time.Time) ([]BucketCount, error) {
	counts := make([]BucketCount, 0, 24)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT EXTRACT(HOUR FROM created_at)::text AS bucket, COUNT(*) AS count
		FROM system_activities
		WHERE created_at >= $1
		GROUP BY bucket
		ORDER BY bucket::int ASC
	`, since)
	return counts, err
}

// HistogramByDay returns entry counts grouped by calendar day for entries
// newer than since, using the store's date_trunc bucketing.
func (r *ActivityRepository) HistogramByDay(ctx context.Context, since time.Time) ([]BucketCount, error) {
	counts := make([]BucketCount, 0, 7)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT TO_CHAR(DATE_TRUNC('day', created_at), 'YYYY-MM-DD') AS bucket, COUNT(*) AS count
		FROM system_activities
		WHERE created_at >= $1
		GROUP BY bucket
		ORDER BY bucket ASC
	`, since)
	return counts, err
}
