// Package models defines the database entities owned by the activity service:
// users (the acting principals) and system activities (the immutable log).
package models

import "time"

// User represents an application user. The activity service only needs the
// fields required to authenticate a principal and to render actor display
// info (name, avatar) alongside activity entries.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	AvatarURL    *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
