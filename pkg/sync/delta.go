package sync

import (
	"context"
	"time"

	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// deltaReader collects every row the requesting device has not seen yet.
// since is an exclusive lower bound; the zero time means first sync and
// returns the family's full live state plus recent tombstones.
type deltaReader struct {
	db bun.IDB
}

// checkpointGrace is subtracted from the wall clock before the delta reads. A
// concurrent writer can stamp updated_at just before this instant and commit
// after our SELECTs; without the grace its row would be invisible now and
// excluded by the `updated_at > checkpoint` bound forever. Backdating the
// checkpoint re-delivers that window on the next sync instead.
const checkpointGrace = 2 * time.Second

// collect returns the server changes along with the new checkpoint. The
// checkpoint is at least as late as every returned change's timestamp and
// trails the query time by at most the grace window, so a client that stores
// it and syncs again can miss nothing. Rows committed between the snapshot
// read and the response may be returned twice across consecutive syncs;
// duplication is bounded and applies idempotently on the client.
func (dr *deltaReader) collect(ctx context.Context, familyID int, since time.Time) ([]Change, time.Time, error) {
	checkpoint := time.Now().UTC().Add(-checkpointGrace)
	changes := []Change{}

	tasks := []*models.Task{}
	err := dr.db.NewSelect().
		Model(&tasks).
		Where("t.family_id = ?", familyID).
		Where("t.updated_at > ?", since).
		Order("t.updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	for _, task := range tasks {
		c, err := taskChange(task)
		if err != nil {
			return nil, time.Time{}, err
		}
		changes = append(changes, c)
	}

	events := []*models.Event{}
	err = dr.db.NewSelect().
		Model(&events).
		Where("e.family_id = ?", familyID).
		Where("e.updated_at > ?", since).
		Order("e.updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	for _, event := range events {
		c, err := eventChange(event)
		if err != nil {
			return nil, time.Time{}, err
		}
		changes = append(changes, c)
	}

	entries := []*models.PointsEntry{}
	err = dr.db.NewSelect().
		Model(&entries).
		Where("pl.family_id = ?", familyID).
		Where("pl.created_at > ?", since).
		Order("pl.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, time.Time{}, errors.WithStack(err)
		}
		changes = append(changes, Change{
			EntityType:      EntityTypePointsLedger,
			EntityID:        entry.ID,
			Action:          ActionCreate,
			Data:            data,
			ClientTimestamp: entry.CreatedAt,
		})
	}

	streaks := []*models.UserStreak{}
	err = dr.db.NewSelect().
		Model(&streaks).
		Where("us.family_id = ?", familyID).
		Where("us.updated_at > ?", since).
		Order("us.updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	for _, streak := range streaks {
		data, err := json.Marshal(streak)
		if err != nil {
			return nil, time.Time{}, errors.WithStack(err)
		}
		changes = append(changes, Change{
			EntityType:      EntityTypeUserStreak,
			EntityID:        streak.ID,
			Action:          ActionUpdate,
			Data:            data,
			ClientTimestamp: streak.UpdatedAt,
		})
	}

	badges := []*models.Badge{}
	err = dr.db.NewSelect().
		Model(&badges).
		Where("bg.family_id = ?", familyID).
		Where("bg.awarded_at > ?", since).
		Order("bg.awarded_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	for _, badge := range badges {
		data, err := json.Marshal(badge)
		if err != nil {
			return nil, time.Time{}, errors.WithStack(err)
		}
		changes = append(changes, Change{
			EntityType:      EntityTypeBadge,
			EntityID:        badge.ID,
			Action:          ActionCreate,
			Data:            data,
			ClientTimestamp: badge.AwardedAt,
		})
	}

	for _, c := range changes {
		if c.ClientTimestamp.After(checkpoint) {
			checkpoint = c.ClientTimestamp
		}
	}
	return changes, checkpoint, nil
}

// taskChange renders a task row as a server change. Tombstoned rows become
// deletes with no payload so old devices learn about removals they missed.
func taskChange(task *models.Task) (Change, error) {
	c := Change{
		EntityType:      EntityTypeTask,
		EntityID:        task.ID,
		Action:          ActionUpdate,
		ClientVersion:   task.Version,
		ClientTimestamp: task.UpdatedAt,
	}
	if task.DeletedAt != nil {
		c.Action = ActionDelete
		return c, nil
	}
	data, err := json.Marshal(task)
	if err != nil {
		return Change{}, errors.WithStack(err)
	}
	c.Data = data
	return c, nil
}

func eventChange(event *models.Event) (Change, error) {
	c := Change{
		EntityType:      EntityTypeEvent,
		EntityID:        event.ID,
		Action:          ActionUpdate,
		ClientTimestamp: event.UpdatedAt,
	}
	if event.DeletedAt != nil {
		c.Action = ActionDelete
		return c, nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return Change{}, errors.WithStack(err)
	}
	c.Data = data
	return c, nil
}
