package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Device is a registered client device. Devices are created implicitly the
// first time they sync and track the checkpoint handed back to the client.
type Device struct {
	bun.BaseModel `bun:"table:devices,alias:d"`

	ID         string     `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FamilyID   int        `json:"family_id"`
	UserID     int        `json:"user_id"`
	Name       string     `json:"name"`
	Platform   string     `json:"platform"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`

	// Relations
	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}
