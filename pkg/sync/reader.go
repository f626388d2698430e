package sync

import (
	"context"
	"time"

	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type recordState int

const (
	// stateMissing means no row exists: the entity never existed server-side.
	stateMissing recordState = iota
	// stateDeleted means a tombstoned row exists. Distinct from stateMissing
	// so the resolver can tell "never existed" from "deleted".
	stateDeleted
	// stateLive means a current row exists.
	stateLive
)

type stateKey struct {
	entityType string
	entityID   string
}

// entityState is the authoritative server-side view of one referenced entity.
type entityState struct {
	state     recordState
	familyID  int
	version   int
	updatedAt time.Time

	task   *models.Task
	event  *models.Event
	ledger *models.PointsEntry
	streak *models.UserStreak
	badge  *models.Badge
}

// serverData marshals the authoritative payload the client should adopt.
// Returns nil (rendered as JSON null) for missing or deleted entities,
// which doubles as the tombstone marker.
func (s entityState) serverData() json.RawMessage {
	if s.state != stateLive {
		return nil
	}

	var v interface{}
	switch {
	case s.task != nil:
		v = s.task
	case s.event != nil:
		v = s.event
	case s.ledger != nil:
		v = s.ledger
	case s.streak != nil:
		v = s.streak
	case s.badge != nil:
		v = s.badge
	default:
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// stateReader batch-loads the authoritative records referenced by a change
// set. One query per entity type regardless of batch size; never one query
// per change.
type stateReader struct {
	db bun.IDB
}

func (r *stateReader) load(ctx context.Context, changes []Change) (map[stateKey]entityState, error) {
	idsByType := map[string][]string{}
	for i := range changes {
		c := &changes[i]
		idsByType[c.EntityType] = append(idsByType[c.EntityType], c.EntityID)
	}

	states := make(map[stateKey]entityState)

	if ids := idsByType[EntityTypeTask]; len(ids) > 0 {
		var tasks []*models.Task
		err := r.db.NewSelect().
			Model(&tasks).
			Where("t.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, task := range tasks {
			st := entityState{
				state:     stateLive,
				familyID:  task.FamilyID,
				version:   task.Version,
				updatedAt: task.UpdatedAt,
				task:      task,
			}
			if task.DeletedAt != nil {
				st.state = stateDeleted
				st.task = nil
			}
			states[stateKey{EntityTypeTask, task.ID}] = st
		}
	}

	if ids := idsByType[EntityTypeEvent]; len(ids) > 0 {
		var events []*models.Event
		err := r.db.NewSelect().
			Model(&events).
			Where("e.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, event := range events {
			st := entityState{
				state:     stateLive,
				familyID:  event.FamilyID,
				updatedAt: event.UpdatedAt,
				event:     event,
			}
			if event.DeletedAt != nil {
				st.state = stateDeleted
				st.event = nil
			}
			states[stateKey{EntityTypeEvent, event.ID}] = st
		}
	}

	if ids := idsByType[EntityTypePointsLedger]; len(ids) > 0 {
		var entries []*models.PointsEntry
		err := r.db.NewSelect().
			Model(&entries).
			Where("pl.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, entry := range entries {
			states[stateKey{EntityTypePointsLedger, entry.ID}] = entityState{
				state:    stateLive,
				familyID: entry.FamilyID,
				ledger:   entry,
			}
		}
	}

	if ids := idsByType[EntityTypeUserStreak]; len(ids) > 0 {
		var streaks []*models.UserStreak
		err := r.db.NewSelect().
			Model(&streaks).
			Where("us.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, streak := range streaks {
			states[stateKey{EntityTypeUserStreak, streak.ID}] = entityState{
				state:     stateLive,
				familyID:  streak.FamilyID,
				updatedAt: streak.UpdatedAt,
				streak:    streak,
			}
		}
	}

	if ids := idsByType[EntityTypeBadge]; len(ids) > 0 {
		var badges []*models.Badge
		err := r.db.NewSelect().
			Model(&badges).
			Where("bg.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, badge := range badges {
			states[stateKey{EntityTypeBadge, badge.ID}] = entityState{
				state:    stateLive,
				familyID: badge.FamilyID,
				badge:    badge,
			}
		}
	}

	return states, nil
}
