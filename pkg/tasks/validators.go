package tasks

import "time"

// Query params for task endpoints.
type ListTasksQuery struct {
	Limit      int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset     int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status     *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=open done"`
	AssignedTo *int    `query:"assigned_to" json:"assigned_to,omitempty" validate:"omitempty,min=1"`
}

// Payloads for create/update endpoints.
type CreateTaskPayload struct {
	Title      string     `json:"title" mod:"trim" validate:"required,min=1,max=200"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
	AssignedTo *int       `json:"assigned_to,omitempty" validate:"omitempty,min=1"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Points     int        `json:"points,omitempty" validate:"min=0,max=1000"`
}

type UpdateTaskPayload struct {
	Version    int        `json:"version" validate:"required,min=1"`
	Title      *string    `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=200"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	AssignedTo *int       `json:"assigned_to,omitempty" validate:"omitempty,min=1"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Points     *int       `json:"points,omitempty" validate:"omitempty,min=0,max=1000"`
}
