package sync

import (
	"time"

	"github.com/segmentio/encoding/json"
)

// Entity types that participate in sync. This is a closed set: the resolver
// dispatches on it exhaustively, so adding a type is a compile-time change to
// the policy switch, not a data-driven one.
const (
	EntityTypeTask         = "task"
	EntityTypeEvent        = "event"
	EntityTypePointsLedger = "points_ledger"
	EntityTypeUserStreak   = "user_streak"
	EntityTypeBadge        = "badge"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	ResolutionServerWins = "server_wins"
	ResolutionClientWins = "client_wins"
	ResolutionMerged     = "merged"
)

// Conflict reasons surfaced to clients.
const (
	ReasonVersionConflict = "version_conflict"
	ReasonStaleTimestamp  = "stale_timestamp"
	ReasonDeleted         = "deleted"
	ReasonNotFound        = "not_found"
	ReasonAlreadyExists   = "already_exists"
	ReasonImmutableLedger = "immutable ledger"
	ReasonServerComputed  = "server-computed value"
	ReasonServerOnly      = "server-only entity"
)

// Change is a client-submitted mutation intent. Changes are immutable once
// submitted; they are never stored as rows, only consumed by the apply step
// and recorded as provenance in the audit trail. The same shape is reused for
// server-to-client deltas, where ClientVersion carries the server version and
// ClientTimestamp the server's updated_at.
type Change struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Action          string          `json:"action"`
	Data            json.RawMessage `json:"data,omitempty"`
	ClientVersion   int             `json:"client_version,omitempty"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
}

// Conflict describes one rejected or partially-rejected change. Conflicts are
// computed per request and never persisted; ServerData is the authoritative
// payload the client should adopt, or null when the entity is gone and the
// client should drop its local copy (a tombstone).
type Conflict struct {
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	ConflictReason string          `json:"conflict_reason"`
	Resolution     string          `json:"resolution"`
	ClientVersion  int             `json:"client_version,omitempty"`
	ServerVersion  int             `json:"server_version,omitempty"`
	ServerData     json.RawMessage `json:"server_data"`
}

// SyncRequest is the envelope of one /sync call. LastSyncAt is the exclusive
// lower bound for server-delta computation; the zero value means "first sync,
// send everything".
type SyncRequest struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	DeviceID   string    `json:"device_id" mod:"trim" validate:"required,max=64"`
	DeviceName string    `json:"device_name,omitempty" validate:"omitempty,max=100"`
	Platform   string    `json:"platform,omitempty" validate:"omitempty,max=50"`
	Changes    []Change  `json:"changes"`

	// userID is stamped from the authenticated session, never bound from
	// the request body.
	userID int
}

// SyncResponse reports everything that happened: conflicts are a normal
// payload, never an HTTP error. Success is true iff Conflicts is empty;
// validator-level errors alone only populate ErrorCount.
type SyncResponse struct {
	ServerChanges []Change   `json:"server_changes"`
	Conflicts     []Conflict `json:"conflicts"`
	LastSyncAt    time.Time  `json:"last_sync_at"`
	Success       bool       `json:"success"`
	AppliedCount  int        `json:"applied_count"`
	ErrorCount    int        `json:"error_count"`
}

// TaskPayload is the entity-shaped data of a task change.
type TaskPayload struct {
	Title      string     `json:"title"`
	Notes      string     `json:"notes,omitempty"`
	Status     string     `json:"status,omitempty"`
	AssignedTo *int       `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Points     int        `json:"points,omitempty"`
}

// EventPayload is the entity-shaped data of an event change.
type EventPayload struct {
	Title    string     `json:"title"`
	Location string     `json:"location,omitempty"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	AllDay   bool       `json:"all_day,omitempty"`
}
