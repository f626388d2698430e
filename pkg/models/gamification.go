package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PointsEntry is one row of the append-only points ledger. Entries are written
// by the gamification engine when tasks complete and are never updated or
// deleted, which is why the sync engine rejects any client mutation of them.
type PointsEntry struct {
	bun.BaseModel `bun:"table:points_ledger,alias:pl"`

	ID        string    `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FamilyID  int       `json:"family_id"`
	UserID    int       `json:"user_id"`
	TaskID    *string   `json:"task_id,omitempty"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
}

// UserStreak is a server-derived counter of consecutive days with at least one
// completed task. It is recomputed from task completions, never assigned.
type UserStreak struct {
	bun.BaseModel `bun:"table:user_streaks,alias:us"`

	ID                string     `bun:",pk,nullzero" json:"id"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FamilyID          int        `json:"family_id"`
	UserID            int        `json:"user_id"`
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	LastCompletedDate *time.Time `json:"last_completed_date,omitempty"`
}

// Badge is an immutable award record.
type Badge struct {
	bun.BaseModel `bun:"table:badges,alias:bg"`

	ID        string    `bun:",pk,nullzero" json:"id"`
	FamilyID  int       `json:"family_id"`
	UserID    int       `json:"user_id"`
	Kind      string    `json:"kind"`
	AwardedAt time.Time `json:"awarded_at"`
}
