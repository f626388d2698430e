package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AuditResolutionApplied    = "applied"
	AuditResolutionServerWins = "server_wins"
	AuditResolutionClientWins = "client_wins"
	AuditResolutionMerged     = "merged"
)

// SyncAuditEntry records the provenance of one change processed by a sync
// request: what the device submitted and how it was resolved. Conflicts
// themselves are ephemeral; this trail is the only durable trace of them.
// Old entries are pruned by the maintenance worker.
type SyncAuditEntry struct {
	bun.BaseModel `bun:"table:sync_audit_log,alias:sal"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	FamilyID      int       `json:"family_id"`
	DeviceID      string    `json:"device_id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Action        string    `json:"action"`
	Resolution    string    `json:"resolution"`
	ClientVersion int       `json:"client_version"`
	ServerVersion int       `json:"server_version"`
}
