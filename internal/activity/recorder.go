package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexocrm/nexo-backend/internal/activity/actorctx"
	"github.com/nexocrm/nexo-backend/internal/db/models"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
	"github.com/nexocrm/nexo-backend/internal/safego"
	"github.com/nexocrm/nexo-backend/internal/telemetry"
)

// Event is one activity to be recorded. UserID/UserName are optional: when
// empty, the recorder resolves the acting principal from the request context
// (see actorctx). IPAddress/UserAgent likewise fall back to the context.
type Event struct {
	Action     Action
	EntityType string
	EntityID   string
	EntityName string
	UserID     string
	UserName   string

	// Description is the human-readable summary. When empty a generic one is
	// generated from the action and entity; the convenience API always sets
	// a templated description.
	Description string

	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

// Drop reasons, also used as the reason label on activities_dropped_total.
var (
	ErrNoActor      = errors.New("no actor could be resolved for activity event")
	ErrUnknownActor = errors.New("activity event actor does not exist")
)

// Recorder is the single writer of the system activity log. All entries are
// created here; every other component only reads.
//
// Log never returns an error: activity logging is best-effort and must never
// fail the business operation it annotates. The fallible path lives in Record,
// which the ingestion endpoint also calls directly to surface failures.
type Recorder struct {
	activities *repositories.ActivityRepository
	users      *repositories.UserRepository
	shipper    Shipper // optional fan-out to external destinations
}

// NewRecorder creates a Recorder. shipper may be nil.
func NewRecorder(activities *repositories.ActivityRepository, users *repositories.UserRepository, shipper Shipper) *Recorder {
	return &Recorder{activities: activities, users: users, shipper: shipper}
}

// Log records one activity entry, swallowing every failure. Dropped entries
// are logged as warnings and counted in activities_dropped_total.
func (r *Recorder) Log(ctx context.Context, e Event) {
	if _, err := r.Record(ctx, e); err != nil {
		slog.Warn("activity entry dropped",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"error", err)
	}
}

// Record resolves the actor, validates it against the user store, and
// persists exactly one row, returning it. It is the fallible core wrapped by
// Log; the HTTP ingestion endpoint uses it directly so it can surface errors.
func (r *Recorder) Record(ctx context.Context, e Event) (*models.SystemActivity, error) {
	userID, userName := e.UserID, e.UserName
	if userID == "" {
		userID, userName = actorctx.Actor(ctx)
	}

	if userID == "" {
		telemetry.ActivitiesDroppedTotal.WithLabelValues("no_actor").Inc()
		return nil, ErrNoActor
	}

	// The foreign key to users is enforced here rather than left to the
	// database so a dangling actor is dropped with a warning instead of
	// surfacing a constraint violation.
	exists, err := r.users.UserExists(ctx, userID)
	if err != nil {
		telemetry.ActivitiesDroppedTotal.WithLabelValues("persist_error").Inc()
		return nil, fmt.Errorf("failed to verify actor %s: %w", userID, err)
	}
	if !exists {
		telemetry.ActivitiesDroppedTotal.WithLabelValues("unknown_actor").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, userID)
	}

	ipAddress, userAgent := e.IPAddress, e.UserAgent
	if ipAddress == "" && userAgent == "" {
		ipAddress, userAgent = actorctx.Provenance(ctx)
	}

	description := e.Description
	if description == "" {
		description = genericDescription(e.Action, e.EntityType, e.EntityName)
	}

	entry := &models.SystemActivity{
		Action:      string(e.Action),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		UserID:      userID,
		UserName:    userName,
		Description: description,
		Metadata:    e.Metadata,
	}
	if e.EntityName != "" {
		entry.EntityName = &e.EntityName
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}

	if err := r.activities.Create(ctx, entry); err != nil {
		telemetry.ActivitiesDroppedTotal.WithLabelValues("persist_error").Inc()
		return nil, fmt.Errorf("failed to persist activity: %w", err)
	}

	telemetry.ActivitiesRecordedTotal.WithLabelValues(string(e.Action)).Inc()

	if r.shipper != nil {
		r.ship(entry)
	}

	return entry, nil
}

// ship fans the persisted entry out to external destinations without blocking
// the caller. Shipping failures only produce log lines and a counter bump;
// the database row is already safely written.
func (r *Recorder) ship(entry *models.SystemActivity) {
	shipper := r.shipper
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shipper.Ship(ctx, entry); err != nil {
			telemetry.ActivityShipErrorsTotal.Inc()
			slog.Warn("failed to ship activity entry", "id", entry.ID, "error", err)
		}
	})
}
