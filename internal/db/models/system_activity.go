package models

import "time"

// SystemActivity is one immutable activity log row. Rows are write-once:
// nothing in the application updates or deletes them, and created_at is the
// sole ordering key for display.
//
// UserName and EntityName are denormalized display copies taken at write
// time. They intentionally drift from the source of truth when a user or
// entity is later renamed — history should read the way it happened. UserID
// and EntityID remain the joinable identifiers.
//
// Metadata is stored as serialized JSON text. The structured form
// (map[string]interface{}) only exists on either side of the repository
// boundary; handlers and services never see the serialized string.
type SystemActivity struct {
	ID          string                 `db:"id" json:"id"`
	Action      string                 `db:"action" json:"action"`
	EntityType  string                 `db:"entity_type" json:"entityType"`
	EntityID    string                 `db:"entity_id" json:"entityId"`
	EntityName  *string                `db:"entity_name" json:"entityName,omitempty"`
	UserID      string                 `db:"user_id" json:"userId"`
	UserName    string                 `db:"user_name" json:"userName"`
	Description string                 `db:"description" json:"description"`
	Metadata    map[string]interface{} `db:"-" json:"metadata,omitempty"`
	IPAddress   *string                `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent   *string                `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"createdAt"`

	// UserAvatarURL is joined from users at query time for rendering; it is
	// never stored on the activity row.
	UserAvatarURL *string `db:"user_avatar_url" json:"userAvatarUrl,omitempty"`
}
