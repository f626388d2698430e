package sync

import (
	"context"
	"database/sql"
	"time"

	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// appliedChange identifies one successfully persisted change.
type appliedChange struct {
	entityType string
	entityID   string
	newVersion int
}

// applyResult carries both outcomes of the unit of work: what was persisted
// and which changes lost a write-time race. The applier never throws on the
// first rejection; the orchestrator aggregates both into the response.
type applyResult struct {
	applied   []appliedChange
	conflicts []Conflict
}

// applier persists the accepted subset of a batch as one atomic unit of work.
// Any unexpected storage error rolls the whole unit back; none of the batch's
// changes survive and the caller reports a transient error.
type applier struct {
	db  *bun.DB
	gam *gamification.Service
}

func (ap *applier) apply(ctx context.Context, familyID int, device *SyncRequest, decisions []decision, now time.Time) (*applyResult, error) {
	result := &applyResult{}

	err := ap.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var audits []*models.SyncAuditEntry

		for i := range decisions {
			d := &decisions[i]

			serverVersion := d.state.version
			if d.apply && !d.noop {
				applied, conflict, err := ap.applyOne(ctx, tx, familyID, d, now)
				if err != nil {
					return err
				}
				if conflict != nil {
					// The row moved between read and write; the storage
					// row's compare-and-set is the final arbiter and this
					// change lost. Tell the client to retry with fresh state.
					d.apply = false
					d.conflict = conflict
					result.conflicts = append(result.conflicts, *conflict)
					serverVersion = conflict.ServerVersion
				} else {
					result.applied = append(result.applied, *applied)
					serverVersion = applied.newVersion
				}
			} else if d.apply && d.noop {
				result.applied = append(result.applied, appliedChange{
					entityType: d.change.EntityType,
					entityID:   d.change.EntityID,
					newVersion: d.state.version,
				})
			}

			audits = append(audits, &models.SyncAuditEntry{
				CreatedAt:     now,
				FamilyID:      familyID,
				DeviceID:      device.DeviceID,
				EntityType:    d.change.EntityType,
				EntityID:      d.change.EntityID,
				Action:        d.change.Action,
				Resolution:    d.auditResolution(),
				ClientVersion: d.change.ClientVersion,
				ServerVersion: serverVersion,
			})
		}

		if len(audits) > 0 {
			_, err := tx.NewInsert().Model(&audits).Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return ap.touchDevice(ctx, tx, familyID, device, now)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyOne writes a single accepted change. A nil, nil, nil return is never
// produced: the change either persists, degrades into a write-time conflict,
// or fails the whole transaction.
func (ap *applier) applyOne(ctx context.Context, tx bun.Tx, familyID int, d *decision, now time.Time) (*appliedChange, *Conflict, error) {
	switch d.change.EntityType {
	case EntityTypeTask:
		return ap.applyTask(ctx, tx, familyID, d, now)
	case EntityTypeEvent:
		return ap.applyEvent(ctx, tx, familyID, d, now)
	default:
		// Immutable types never reach the applier.
		return nil, nil, errors.Errorf("change for %s cannot be applied", d.change.EntityType)
	}
}

func (ap *applier) applyTask(ctx context.Context, tx bun.Tx, familyID int, d *decision, now time.Time) (*appliedChange, *Conflict, error) {
	change := &d.change

	if change.Action == ActionCreate {
		var payload TaskPayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return nil, nil, errors.WithStack(err)
		}
		status := payload.Status
		if status == "" {
			status = models.TaskStatusOpen
		}
		task := &models.Task{
			ID:         change.EntityID,
			CreatedAt:  now,
			UpdatedAt:  now,
			FamilyID:   familyID,
			Title:      payload.Title,
			Notes:      payload.Notes,
			Status:     status,
			AssignedTo: payload.AssignedTo,
			DueDate:    payload.DueDate,
			Points:     payload.Points,
			Version:    1,
		}
		_, err := tx.NewInsert().Model(task).Exec(ctx)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		if task.IsDone() {
			if err := ap.gam.AwardTaskCompletion(ctx, tx, task); err != nil {
				return nil, nil, err
			}
		}
		return &appliedChange{EntityTypeTask, change.EntityID, 1}, nil, nil
	}

	if change.Action == ActionDelete {
		res, err := tx.NewUpdate().
			Model((*models.Task)(nil)).
			Set("deleted_at = ?", now).
			Set("updated_at = ?", now).
			Set("version = version + 1").
			Where("id = ?", change.EntityID).
			Where("family_id = ?", familyID).
			Where("deleted_at IS NULL").
			Where("version = ?", d.state.version).
			Exec(ctx)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		task, conflict, err := ap.taskOutcome(ctx, tx, res, change, d.state.version)
		if err != nil || conflict != nil {
			return nil, conflict, err
		}
		return &appliedChange{EntityTypeTask, change.EntityID, task.Version}, nil, nil
	}

	// Update. Whole-record resolution: the payload replaces every mutable
	// field; version advances by exactly one via compare-and-set, except for
	// done-wins applies which bypass the version predicate.
	var payload TaskPayload
	if err := json.Unmarshal(change.Data, &payload); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	status := payload.Status
	if status == "" {
		status = models.TaskStatusOpen
	}

	q := tx.NewUpdate().
		Model((*models.Task)(nil)).
		Set("title = ?", payload.Title).
		Set("notes = ?", payload.Notes).
		Set("status = ?", status).
		Set("assigned_to = ?", payload.AssignedTo).
		Set("due_date = ?", payload.DueDate).
		Set("points = ?", payload.Points).
		Set("updated_at = ?", now).
		Set("version = version + 1").
		Where("id = ?", change.EntityID).
		Where("family_id = ?", familyID).
		Where("deleted_at IS NULL")
	if status != models.TaskStatusDone {
		q = q.Where("version = ?", d.state.version)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	wasDone := d.state.task != nil && d.state.task.IsDone()
	task, conflict, err := ap.taskOutcome(ctx, tx, res, change, d.state.version)
	if err != nil || conflict != nil {
		return nil, conflict, err
	}
	if task.IsDone() && !wasDone {
		if err := ap.gam.AwardTaskCompletion(ctx, tx, task); err != nil {
			return nil, nil, err
		}
	}
	return &appliedChange{EntityTypeTask, change.EntityID, task.Version}, nil, nil
}

// taskOutcome converts the result of a compare-and-set task write into either
// the row as written or a refreshed version conflict.
func (ap *applier) taskOutcome(ctx context.Context, tx bun.Tx, res sql.Result, change *Change, observedVersion int) (*models.Task, *Conflict, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	if n > 0 {
		// Re-read the row: done-wins applies skip the version predicate, so
		// the resulting version is whatever the row now holds.
		task := &models.Task{}
		err := tx.NewSelect().
			Model(task).
			Where("t.id = ?", change.EntityID).
			Scan(ctx)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		return task, nil, nil
	}

	// CAS miss: another request applied first. Surface the row as it is now.
	task := &models.Task{}
	err = tx.NewSelect().
		Model(task).
		Where("t.id = ?", change.EntityID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.WithStack(err)
	}

	conflict := &Conflict{
		EntityType:     EntityTypeTask,
		EntityID:       change.EntityID,
		ConflictReason: ReasonVersionConflict,
		Resolution:     ResolutionServerWins,
		ClientVersion:  change.ClientVersion,
		ServerVersion:  observedVersion,
	}
	if err == nil {
		conflict.ServerVersion = task.Version
		if task.DeletedAt == nil {
			if data, merr := json.Marshal(task); merr == nil {
				conflict.ServerData = data
			}
		} else {
			conflict.ConflictReason = ReasonDeleted
		}
	}
	return nil, conflict, nil
}

func (ap *applier) applyEvent(ctx context.Context, tx bun.Tx, familyID int, d *decision, now time.Time) (*appliedChange, *Conflict, error) {
	change := &d.change

	if change.Action == ActionCreate {
		var payload EventPayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return nil, nil, errors.WithStack(err)
		}
		event := &models.Event{
			ID:        change.EntityID,
			CreatedAt: now,
			UpdatedAt: now,
			FamilyID:  familyID,
			Title:     payload.Title,
			Location:  payload.Location,
			StartsAt:  payload.StartsAt,
			EndsAt:    payload.EndsAt,
			AllDay:    payload.AllDay,
		}
		_, err := tx.NewInsert().Model(event).Exec(ctx)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		return &appliedChange{EntityTypeEvent, change.EntityID, 0}, nil, nil
	}

	if change.Action == ActionDelete {
		res, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("deleted_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ?", change.EntityID).
			Where("family_id = ?", familyID).
			Where("deleted_at IS NULL").
			Where("updated_at = ?", d.state.updatedAt).
			Exec(ctx)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		return ap.eventOutcome(ctx, tx, res, change)
	}

	var payload EventPayload
	if err := json.Unmarshal(change.Data, &payload); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	res, err := tx.NewUpdate().
		Model((*models.Event)(nil)).
		Set("title = ?", payload.Title).
		Set("location = ?", payload.Location).
		Set("starts_at = ?", payload.StartsAt).
		Set("ends_at = ?", payload.EndsAt).
		Set("all_day = ?", payload.AllDay).
		Set("updated_at = ?", now).
		Where("id = ?", change.EntityID).
		Where("family_id = ?", familyID).
		Where("deleted_at IS NULL").
		Where("updated_at = ?", d.state.updatedAt).
		Exec(ctx)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return ap.eventOutcome(ctx, tx, res, change)
}

// eventOutcome converts the result of an event write, which uses updated_at
// as its compare-and-set token since events carry no version column.
func (ap *applier) eventOutcome(ctx context.Context, tx bun.Tx, res sql.Result, change *Change) (*appliedChange, *Conflict, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if n > 0 {
		return &appliedChange{EntityTypeEvent, change.EntityID, 0}, nil, nil
	}

	event := &models.Event{}
	err = tx.NewSelect().
		Model(event).
		Where("e.id = ?", change.EntityID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.WithStack(err)
	}

	conflict := &Conflict{
		EntityType:     EntityTypeEvent,
		EntityID:       change.EntityID,
		ConflictReason: ReasonStaleTimestamp,
		Resolution:     ResolutionServerWins,
	}
	if err == nil {
		if event.DeletedAt == nil {
			if data, merr := json.Marshal(event); merr == nil {
				conflict.ServerData = data
			}
		} else {
			conflict.ConflictReason = ReasonDeleted
		}
	}
	return nil, conflict, nil
}

// touchDevice registers the device on first contact and records sync
// bookkeeping. Both timestamps are informational; the client owns its
// checkpoint.
func (ap *applier) touchDevice(ctx context.Context, tx bun.Tx, familyID int, req *SyncRequest, now time.Time) error {
	device := &models.Device{
		ID:         req.DeviceID,
		CreatedAt:  now,
		UpdatedAt:  now,
		FamilyID:   familyID,
		UserID:     req.userID,
		Name:       req.DeviceName,
		Platform:   req.Platform,
		LastSeenAt: &now,
		LastSyncAt: &now,
	}
	_, err := tx.NewInsert().
		Model(device).
		On("CONFLICT (id) DO UPDATE").
		Set("last_seen_at = EXCLUDED.last_seen_at").
		Set("last_sync_at = EXCLUDED.last_sync_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}
