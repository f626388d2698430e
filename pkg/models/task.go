package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// Task is the only entity type with explicit version tracking. Version
// increases by exactly one per applied mutation, whether the mutation arrives
// through the sync engine or the CRUD path, and is the basis for conflict
// detection between devices.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID         string     `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FamilyID   int        `json:"family_id"`
	Title      string     `bun:",nullzero" json:"title"`
	Notes      string     `json:"notes,omitempty"`
	Status     string     `bun:",nullzero" json:"status"`
	AssignedTo *int       `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Points     int        `json:"points"`
	Version    int        `json:"version"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// IsDone reports whether the task has been completed. Completion is treated
// as an irreversible real-world event by the sync engine's done-wins rule.
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}
