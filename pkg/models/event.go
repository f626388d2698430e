package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is a calendar entry. Events carry no version column; concurrent edits
// are resolved last-writer-wins on updated_at alone.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        string     `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	FamilyID  int        `json:"family_id"`
	Title     string     `bun:",nullzero" json:"title"`
	Location  string     `json:"location,omitempty"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	AllDay    bool       `json:"all_day"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
