package events

import "time"

// Query params for event endpoints.
type ListEventsQuery struct {
	Limit  int        `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=500"`
	Offset int        `query:"offset" json:"offset,omitempty" validate:"min=0"`
	From   *time.Time `query:"from" json:"from,omitempty"`
	To     *time.Time `query:"to" json:"to,omitempty"`
}

// Payloads for create/update endpoints.
type CreateEventPayload struct {
	Title    string     `json:"title" mod:"trim" validate:"required,min=1,max=200"`
	Location string     `json:"location,omitempty" validate:"max=500"`
	StartsAt time.Time  `json:"starts_at" validate:"required"`
	EndsAt   *time.Time `json:"ends_at,omitempty" validate:"omitempty,gtfield=StartsAt"`
	AllDay   bool       `json:"all_day"`
}

type UpdateEventPayload struct {
	Title    *string    `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=200"`
	Location *string    `json:"location,omitempty" validate:"omitempty,max=500"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	AllDay   *bool      `json:"all_day,omitempty"`
}
