package models

import "time"

// FlagEvent records one detection of a flagged term in outgoing text.
type FlagEvent struct {
	ID        int64     `db:"id" json:"id"`
	ContactID string    `db:"contact_id" json:"contactId"`
	Term      string    `db:"term" json:"term"`
	Count     int       `db:"count" json:"count"`
	Warned    bool      `db:"warned" json:"warned"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type AlertKind string

const (
	AlertPermission AlertKind = "permission"
	AlertValidation AlertKind = "validation"
	AlertNetwork    AlertKind = "network"
	AlertModeration AlertKind = "moderation"
)

// Alert is a user-visible report of a failed action or a moderation warning.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}
