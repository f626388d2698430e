package sync

import (
	"strings"

	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/segmentio/encoding/json"
)

const maxEntityIDLength = 64

var knownEntityTypes = map[string]bool{
	EntityTypeTask:         true,
	EntityTypeEvent:        true,
	EntityTypePointsLedger: true,
	EntityTypeUserStreak:   true,
	EntityTypeBadge:        true,
}

var knownActions = map[string]bool{
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
}

// validateChange classifies one incoming change. A non-empty return value is
// the reason the change is malformed; malformed changes are counted, never
// applied, and never surfaced as conflicts. Each change is independent here:
// a bad entry never aborts the batch.
func validateChange(change *Change) string {
	if !knownEntityTypes[change.EntityType] {
		return "unknown entity type"
	}

	id := strings.TrimSpace(change.EntityID)
	if id == "" {
		return "missing entity id"
	}
	if len(id) > maxEntityIDLength {
		return "entity id too long"
	}

	if !knownActions[change.Action] {
		return "unknown action"
	}

	if change.Action != ActionDelete {
		if len(change.Data) == 0 {
			return "missing data payload"
		}
		if !json.Valid(change.Data) {
			return "invalid data payload"
		}
		if reason := validatePayload(change); reason != "" {
			return reason
		}
	}

	if change.ClientTimestamp.IsZero() {
		return "missing client timestamp"
	}

	return ""
}

// validatePayload decodes the typed payload up front. A payload that is valid
// JSON but the wrong shape would otherwise surface as a storage error deep
// inside the apply transaction and roll back the whole batch; it belongs here,
// where it costs one error count and nothing else.
func validatePayload(change *Change) string {
	switch change.EntityType {
	case EntityTypeTask:
		var payload TaskPayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return "mistyped task payload"
		}
		if strings.TrimSpace(payload.Title) == "" {
			return "missing task title"
		}
		switch payload.Status {
		case "", models.TaskStatusOpen, models.TaskStatusDone:
		default:
			return "unknown task status"
		}
	case EntityTypeEvent:
		var payload EventPayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return "mistyped event payload"
		}
		if strings.TrimSpace(payload.Title) == "" {
			return "missing event title"
		}
		if payload.StartsAt.IsZero() {
			return "missing event start time"
		}
	default:
		// Immutable types never reach the applier; syntactic validity is
		// enough to audit and reject them.
	}

	return ""
}

// splitValid partitions changes into well-formed ones and a count of
// malformed ones, preserving submission order for the valid subset.
func splitValid(changes []Change) ([]Change, []string) {
	valid := make([]Change, 0, len(changes))
	var reasons []string

	for i := range changes {
		if reason := validateChange(&changes[i]); reason != "" {
			reasons = append(reasons, reason)
			continue
		}
		valid = append(valid, changes[i])
	}

	return valid, reasons
}
