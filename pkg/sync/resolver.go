package sync

import (
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/segmentio/encoding/json"
)

// decision is the resolver's verdict on one change. apply and conflict can
// both be set: a last-writer-wins apply of divergent state is applied AND
// reported as a client_wins conflict so the client knows the server adopted
// its data over a diverged row.
type decision struct {
	change Change
	state  entityState
	apply  bool
	// noop marks an apply that needs no write, e.g. deleting an entity that
	// is already gone. Counted as applied, nothing persisted.
	noop     bool
	conflict *Conflict
}

// auditResolution maps a decision onto the resolution recorded in the audit
// trail.
func (d *decision) auditResolution() string {
	if d.conflict == nil {
		return models.AuditResolutionApplied
	}
	return d.conflict.Resolution
}

// resolve applies the per-entity-type policy table. The switch is exhaustive
// over the closed entity type set; the validator has already rejected unknown
// types.
func resolve(change Change, state entityState) decision {
	switch change.EntityType {
	case EntityTypeTask:
		return resolveTask(change, state)
	case EntityTypeEvent:
		return resolveEvent(change, state)
	case EntityTypePointsLedger:
		// The ledger is append-only and written only by the gamification
		// engine. Clients can read it but never mutate it.
		return conflictDecision(change, state, ReasonImmutableLedger)
	case EntityTypeUserStreak:
		// Streaks are derivable from task completions, not assignable.
		return conflictDecision(change, state, ReasonServerComputed)
	case EntityTypeBadge:
		return conflictDecision(change, state, ReasonServerOnly)
	default:
		// Unreachable after validation; reject conservatively.
		return conflictDecision(change, state, ReasonNotFound)
	}
}

// resolveTask implements the hybrid task policy: delete wins, then done wins,
// then exact version match, then timestamp comparison with ties favoring the
// server.
func resolveTask(change Change, state entityState) decision {
	switch state.state {
	case stateDeleted:
		if change.Action == ActionDelete {
			return decision{change: change, state: state, apply: true, noop: true}
		}
		// Delete always wins. Never resurrect; hand back a tombstone.
		return conflictDecision(change, state, ReasonDeleted)
	case stateMissing:
		switch change.Action {
		case ActionCreate:
			return decision{change: change, state: state, apply: true}
		case ActionDelete:
			return decision{change: change, state: state, apply: true, noop: true}
		default:
			return conflictDecision(change, state, ReasonNotFound)
		}
	}

	// Live row from here on.
	if change.Action == ActionCreate {
		return conflictDecision(change, state, ReasonAlreadyExists)
	}

	// Done wins: completion is an irreversible real-world event and must
	// never be lost to a stale concurrent edit of unrelated fields.
	if change.Action == ActionUpdate {
		var payload TaskPayload
		if err := json.Unmarshal(change.Data, &payload); err == nil && payload.Status == models.TaskStatusDone {
			if state.task != nil && state.task.IsDone() && payloadMatchesTask(&payload, state.task) {
				// A resubmitted completion of an already-done row. The first
				// delivery bumped the version and awarded the points; applying
				// again would bump the version on every retry.
				return decision{change: change, state: state, apply: true, noop: true}
			}
			return decision{change: change, state: state, apply: true}
		}
	}

	if change.ClientVersion == state.version {
		return decision{change: change, state: state, apply: true}
	}

	// Versions diverged: newer wall-clock timestamp wins, ties favor server.
	if change.ClientTimestamp.After(state.updatedAt) {
		d := decision{change: change, state: state, apply: true}
		d.conflict = &Conflict{
			EntityType:     change.EntityType,
			EntityID:       change.EntityID,
			ConflictReason: ReasonVersionConflict,
			Resolution:     ResolutionClientWins,
			ClientVersion:  change.ClientVersion,
			ServerVersion:  state.version,
			ServerData:     state.serverData(),
		}
		return d
	}

	return conflictDecision(change, state, ReasonVersionConflict)
}

// resolveEvent implements last-writer-wins by timestamp only. Events carry no
// version field; this is deliberately a narrower guarantee than the task
// scheme and must not be strengthened.
func resolveEvent(change Change, state entityState) decision {
	switch state.state {
	case stateDeleted:
		if change.Action == ActionDelete {
			return decision{change: change, state: state, apply: true, noop: true}
		}
		return conflictDecision(change, state, ReasonDeleted)
	case stateMissing:
		switch change.Action {
		case ActionCreate:
			return decision{change: change, state: state, apply: true}
		case ActionDelete:
			return decision{change: change, state: state, apply: true, noop: true}
		default:
			return conflictDecision(change, state, ReasonNotFound)
		}
	}

	if change.Action == ActionCreate {
		return conflictDecision(change, state, ReasonAlreadyExists)
	}

	if change.ClientTimestamp.After(state.updatedAt) {
		return decision{change: change, state: state, apply: true}
	}

	return conflictDecision(change, state, ReasonStaleTimestamp)
}

// payloadMatchesTask reports whether applying the payload would leave the row
// unchanged in every mutable field.
func payloadMatchesTask(p *TaskPayload, t *models.Task) bool {
	if p.Title != t.Title || p.Notes != t.Notes || p.Points != t.Points {
		return false
	}
	if (p.AssignedTo == nil) != (t.AssignedTo == nil) {
		return false
	}
	if p.AssignedTo != nil && *p.AssignedTo != *t.AssignedTo {
		return false
	}
	if (p.DueDate == nil) != (t.DueDate == nil) {
		return false
	}
	if p.DueDate != nil && !p.DueDate.Equal(*t.DueDate) {
		return false
	}
	return true
}

func conflictDecision(change Change, state entityState, reason string) decision {
	return decision{
		change: change,
		state:  state,
		conflict: &Conflict{
			EntityType:     change.EntityType,
			EntityID:       change.EntityID,
			ConflictReason: reason,
			Resolution:     ResolutionServerWins,
			ClientVersion:  change.ClientVersion,
			ServerVersion:  state.version,
			ServerData:     state.serverData(),
		},
	}
}
