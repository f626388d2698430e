package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() context.Context {
	return logger.New().WithContext(context.Background())
}

func TestSyncCreateAndResubmit(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Nakamura")

	req := &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionCreate,
			Data:            taskData(t, TaskPayload{Title: "Take out trash", Points: 5}),
			ClientTimestamp: time.Now().UTC(),
		}},
	}

	resp, err := svc.Sync(ctx, familyID, userID, req)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)
	assert.Equal(t, 0, resp.ErrorCount)
	assert.Empty(t, resp.Conflicts)

	task := fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, "Take out trash", task.Title)
	assert.Equal(t, 1, task.Version)
	assert.Equal(t, familyID, task.FamilyID)

	// Resubmitting the same batch must not duplicate or mutate anything.
	resp, err = svc.Sync(ctx, familyID, userID, req)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, ReasonAlreadyExists, resp.Conflicts[0].ConflictReason)

	task = fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, 1, task.Version, "resubmission must not bump the version")
}

func TestSyncVersionedUpdate(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Okafor")

	seedTask(ctx, t, db, &models.Task{
		ID:       "task-1",
		FamilyID: familyID,
		Title:    "Feed the cat",
		Version:  1,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Feed the cat twice"}),
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)

	task := fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, "Feed the cat twice", task.Title)
	assert.Equal(t, 2, task.Version, "each applied mutation advances the version by one")
}

func TestSyncStaleVersionLoses(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Silva")

	serverTime := time.Now().UTC()
	seedTask(ctx, t, db, &models.Task{
		ID:        "task-1",
		FamilyID:  familyID,
		Title:     "Homework",
		Version:   3,
		UpdatedAt: serverTime,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-b",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Homework (edited offline)"}),
			ClientVersion:   1,
			ClientTimestamp: serverTime.Add(-time.Hour),
		}},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	conflict := resp.Conflicts[0]
	assert.Equal(t, ResolutionServerWins, conflict.Resolution)
	assert.Equal(t, 3, conflict.ServerVersion)
	assert.NotEmpty(t, conflict.ServerData, "loser gets the authoritative payload")

	task := fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, "Homework", task.Title)
	assert.Equal(t, 3, task.Version)
}

func TestSyncDoneWins(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Dubois")

	serverTime := time.Now().UTC()
	seedTask(ctx, t, db, &models.Task{
		ID:        "task-1",
		FamilyID:  familyID,
		Title:     "Water plants",
		Version:   4,
		UpdatedAt: serverTime,
	})

	// Completion submitted from a device that last saw version 2.
	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Water plants", Status: models.TaskStatusDone}),
			ClientVersion:   2,
			ClientTimestamp: serverTime.Add(-time.Hour),
		}},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Conflicts, "completion applies without a conflict entry")
	assert.Equal(t, 1, resp.AppliedCount)

	task := fetchTask(ctx, t, db, "task-1")
	assert.True(t, task.IsDone())
	assert.Equal(t, 5, task.Version)
}

func TestSyncCompletionAwardsPoints(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Keita")

	seedTask(ctx, t, db, &models.Task{
		ID:         "task-1",
		FamilyID:   familyID,
		Title:      "Mow lawn",
		AssignedTo: &userID,
		Points:     15,
		Version:    1,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Mow lawn", Status: models.TaskStatusDone, AssignedTo: &userID, Points: 15}),
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	entries := []*models.PointsEntry{}
	err = db.NewSelect().Model(&entries).Where("pl.family_id = ?", familyID).Scan(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 15, entries[0].Points)
	assert.Equal(t, userID, entries[0].UserID)

	// Completing an already-done task must not double-award.
	_, err = svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-b",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Mow lawn", Status: models.TaskStatusDone, AssignedTo: &userID, Points: 15}),
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	entries = []*models.PointsEntry{}
	err = db.NewSelect().Model(&entries).Where("pl.family_id = ?", familyID).Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSyncDeleteWins(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Haddad")

	deleted := time.Now().UTC().Add(-time.Hour)
	seedTask(ctx, t, db, &models.Task{
		ID:        "task-1",
		FamilyID:  familyID,
		Title:     "Old chore",
		Version:   2,
		UpdatedAt: deleted,
		DeletedAt: &deleted,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Old chore, renamed"}),
			ClientVersion:   2,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Conflicts, 1)
	conflict := resp.Conflicts[0]
	assert.Equal(t, ReasonDeleted, conflict.ConflictReason)
	assert.Equal(t, ResolutionServerWins, conflict.Resolution)
	assert.Empty(t, conflict.ServerData, "tombstone carries no payload")

	task := fetchTask(ctx, t, db, "task-1")
	assert.NotNil(t, task.DeletedAt, "the row stays deleted")
	assert.Equal(t, "Old chore", task.Title)
}

func TestSyncDeleteTask(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Larsen")

	seedTask(ctx, t, db, &models.Task{
		ID:       "task-1",
		FamilyID: familyID,
		Title:    "Sweep porch",
		Version:  1,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionDelete,
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)

	task := fetchTask(ctx, t, db, "task-1")
	require.NotNil(t, task.DeletedAt)
	assert.Equal(t, 2, task.Version)

	// Deleting again from another device is still a success.
	resp, err = svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-b",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionDelete,
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)
}

func TestSyncDivergedTimestampClientWins(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Moreno")

	serverTime := time.Now().UTC().Add(-time.Hour)
	seedTask(ctx, t, db, &models.Task{
		ID:        "task-1",
		FamilyID:  familyID,
		Title:     "Vacuum",
		Version:   5,
		UpdatedAt: serverTime,
	})

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Vacuum upstairs"}),
			ClientVersion:   3,
			ClientTimestamp: serverTime.Add(30 * time.Minute),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, ResolutionClientWins, resp.Conflicts[0].Resolution)
	assert.False(t, resp.Success, "an adopted divergent write is still reported")

	task := fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, "Vacuum upstairs", task.Title)
	assert.Equal(t, 6, task.Version)
}

func TestSyncEventLastWriterWins(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Novak")

	serverTime := time.Now().UTC().Add(-time.Hour)
	starts := serverTime.Add(48 * time.Hour)
	seedEvent(ctx, t, db, &models.Event{
		ID:        "event-1",
		FamilyID:  familyID,
		Title:     "Dentist",
		StartsAt:  starts,
		UpdatedAt: serverTime,
	})

	// Older client edit loses.
	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeEvent,
			EntityID:        "event-1",
			Action:          ActionUpdate,
			Data:            eventData(t, EventPayload{Title: "Dentist (moved)", StartsAt: starts}),
			ClientTimestamp: serverTime.Add(-time.Minute),
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, ReasonStaleTimestamp, resp.Conflicts[0].ConflictReason)

	// Newer client edit wins.
	resp, err = svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeEvent,
			EntityID:        "event-1",
			Action:          ActionUpdate,
			Data:            eventData(t, EventPayload{Title: "Dentist (moved)", StartsAt: starts.Add(time.Hour)}),
			ClientTimestamp: serverTime.Add(time.Minute),
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)

	event := &models.Event{}
	err = db.NewSelect().Model(event).Where("e.id = ?", "event-1").Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Dentist (moved)", event.Title)
}

func TestSyncImmutableLedgerRejected(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Petrov")

	entry := &models.PointsEntry{
		ID:        "pl-1",
		CreatedAt: time.Now().UTC(),
		FamilyID:  familyID,
		UserID:    userID,
		Points:    5,
		Reason:    "task_completed",
	}
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	require.NoError(t, err)

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypePointsLedger,
			EntityID:        "pl-1",
			Action:          ActionUpdate,
			Data:            []byte(`{"points":9999}`),
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, ReasonImmutableLedger, resp.Conflicts[0].ConflictReason)

	stored := &models.PointsEntry{}
	err = db.NewSelect().Model(stored).Where("pl.id = ?", "pl-1").Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Points)
}

func TestSyncMalformedChangesCounted(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Costa")

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{
			{
				EntityType:      "grocery_list",
				EntityID:        "g-1",
				Action:          ActionCreate,
				Data:            []byte(`{}`),
				ClientTimestamp: time.Now().UTC(),
			},
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-1",
				Action:          ActionCreate,
				Data:            taskData(t, TaskPayload{Title: "Valid one"}),
				ClientTimestamp: time.Now().UTC(),
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.ErrorCount)
	assert.Equal(t, 1, resp.AppliedCount)
	assert.True(t, resp.Success, "malformed entries alone are not conflicts")
}

func TestSyncMistypedPayloadSkipped(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Lindgren")

	// Valid JSON with the wrong shape must cost one error count, not abort
	// the batch: the good change alongside it still applies.
	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-bad",
				Action:          ActionCreate,
				Data:            []byte(`{"title":123}`),
				ClientTimestamp: time.Now().UTC(),
			},
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-bad-status",
				Action:          ActionCreate,
				Data:            []byte(`{"title":"Laundry","status":"archived"}`),
				ClientTimestamp: time.Now().UTC(),
			},
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-good",
				Action:          ActionCreate,
				Data:            taskData(t, TaskPayload{Title: "Still fine"}),
				ClientTimestamp: time.Now().UTC(),
			},
		},
	})
	require.NoError(t, err, "a wrong-shaped payload is a validation error, never a storage fault")

	assert.Equal(t, 2, resp.ErrorCount)
	assert.Equal(t, 1, resp.AppliedCount)
	assert.True(t, resp.Success)

	task := fetchTask(ctx, t, db, "task-good")
	assert.Equal(t, "Still fine", task.Title)

	err = db.NewSelect().Model(&models.Task{}).Where("t.id = ?", "task-bad").Scan(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Retrying the identical batch converges instead of looping: the good
	// change turns into an already-exists conflict and nothing else changes.
	resp, err = svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-bad",
				Action:          ActionCreate,
				Data:            []byte(`{"title":123}`),
				ClientTimestamp: time.Now().UTC(),
			},
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-good",
				Action:          ActionCreate,
				Data:            taskData(t, TaskPayload{Title: "Still fine"}),
				ClientTimestamp: time.Now().UTC(),
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ErrorCount)
	assert.Equal(t, 0, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, ReasonAlreadyExists, resp.Conflicts[0].ConflictReason)
}

func TestSyncResubmittedCompletionKeepsVersion(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Whitfield")

	seedTask(ctx, t, db, &models.Task{
		ID:       "task-1",
		FamilyID: familyID,
		Title:    "Rake leaves",
		Version:  1,
	})

	done := &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Rake leaves", Status: models.TaskStatusDone}),
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	}

	resp, err := svc.Sync(ctx, familyID, userID, done)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	task := fetchTask(ctx, t, db, "task-1")
	require.Equal(t, 2, task.Version)

	// The retry is an applied noop: acknowledged, nothing rewritten.
	resp, err = svc.Sync(ctx, familyID, userID, done)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.AppliedCount)
	assert.Empty(t, resp.Conflicts)

	task = fetchTask(ctx, t, db, "task-1")
	assert.Equal(t, 2, task.Version, "a retried completion must not bump the version")
	assert.True(t, task.IsDone())
}

func TestSyncStorageFaultRollsBackBatch(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Aldana")

	// Two creates for the same id pass validation and resolution but the
	// second insert trips the primary key inside the transaction.
	_, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-1",
				Action:          ActionCreate,
				Data:            taskData(t, TaskPayload{Title: "First copy"}),
				ClientTimestamp: time.Now().UTC(),
			},
			{
				EntityType:      EntityTypeTask,
				EntityID:        "task-1",
				Action:          ActionCreate,
				Data:            taskData(t, TaskPayload{Title: "Second copy"}),
				ClientTimestamp: time.Now().UTC(),
			},
		},
	})
	require.Error(t, err)

	codeErr := &errcodes.Error{}
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 503, codeErr.HTTPCode)
	assert.Equal(t, "transient_storage_error", codeErr.Code)

	// The whole unit of work rolled back: no task, no audit rows, no device.
	err = db.NewSelect().Model(&models.Task{}).Where("t.id = ?", "task-1").Scan(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	count, err := db.NewSelect().Model((*models.SyncAuditEntry)(nil)).Where("sal.family_id = ?", familyID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = db.NewSelect().Model(&models.Device{}).Where("d.id = ?", "device-a").Scan(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSyncCrossFamilyIsolation(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyA, userA := seedFamily(ctx, t, db, "Famille A")
	familyB, _ := seedFamily(ctx, t, db, "Famille B")

	seedTask(ctx, t, db, &models.Task{
		ID:       "task-b",
		FamilyID: familyB,
		Title:    "Other family's task",
		Version:  1,
	})

	resp, err := svc.Sync(ctx, familyA, userA, &SyncRequest{
		DeviceID: "device-a",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-b",
			Action:          ActionUpdate,
			Data:            taskData(t, TaskPayload{Title: "Hijacked"}),
			ClientVersion:   1,
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.AppliedCount)
	assert.Equal(t, 1, resp.ErrorCount)
	assert.Empty(t, resp.Conflicts, "nothing about the foreign row leaks back")

	task := fetchTask(ctx, t, db, "task-b")
	assert.Equal(t, "Other family's task", task.Title)

	// The foreign row never shows up in family A's delta either.
	for _, c := range resp.ServerChanges {
		assert.NotEqual(t, "task-b", c.EntityID)
	}
}

func TestSyncBatchTooLarge(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := NewService(db, &config.Config{SyncMaxBatchSize: 2})
	familyID, userID := seedFamily(ctx, t, db, "Tanaka")

	changes := make([]Change, 3)
	for i := range changes {
		changes[i] = Change{
			EntityType:      EntityTypeTask,
			EntityID:        "task-x",
			Action:          ActionDelete,
			ClientTimestamp: time.Now().UTC(),
		}
	}

	_, err := svc.Sync(ctx, familyID, userID, &SyncRequest{DeviceID: "device-a", Changes: changes})
	require.Error(t, err)

	codeErr := &errcodes.Error{}
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 422, codeErr.HTTPCode)
}

func TestSyncDeltaAndCheckpoint(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Eriksen")

	old := time.Now().UTC().Add(-2 * time.Hour)
	mid := time.Now().UTC().Add(-time.Hour)
	seedTask(ctx, t, db, &models.Task{
		ID: "task-old", FamilyID: familyID, Title: "Seen already", UpdatedAt: old,
	})
	seedTask(ctx, t, db, &models.Task{
		ID: "task-new", FamilyID: familyID, Title: "Not seen yet", UpdatedAt: mid,
	})
	deletedAt := mid.Add(time.Minute)
	seedTask(ctx, t, db, &models.Task{
		ID: "task-gone", FamilyID: familyID, Title: "Removed", UpdatedAt: deletedAt, DeletedAt: &deletedAt,
	})

	checkpoint := old.Add(time.Minute)
	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID:   "device-a",
		LastSyncAt: checkpoint,
	})
	require.NoError(t, err)

	ids := map[string]string{}
	for _, c := range resp.ServerChanges {
		ids[c.EntityID] = c.Action
	}
	assert.NotContains(t, ids, "task-old")
	assert.Equal(t, ActionUpdate, ids["task-new"])
	assert.Equal(t, ActionDelete, ids["task-gone"], "tombstones come back as deletes")

	for _, c := range resp.ServerChanges {
		assert.False(t, resp.LastSyncAt.Before(c.ClientTimestamp),
			"checkpoint must cover every returned change")
	}
	assert.True(t, resp.LastSyncAt.After(checkpoint))
}

func TestSyncFirstSyncReturnsEverything(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Bauer")

	seedTask(ctx, t, db, &models.Task{ID: "task-1", FamilyID: familyID, Title: "A"})
	seedEvent(ctx, t, db, &models.Event{ID: "event-1", FamilyID: familyID, Title: "B"})

	entry := &models.PointsEntry{
		ID: "pl-1", CreatedAt: time.Now().UTC(), FamilyID: familyID, UserID: userID, Points: 3, Reason: "task_completed",
	}
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	require.NoError(t, err)

	resp, err := svc.Sync(ctx, familyID, userID, &SyncRequest{DeviceID: "device-a"})
	require.NoError(t, err)

	types := map[string]bool{}
	for _, c := range resp.ServerChanges {
		types[c.EntityType] = true
	}
	assert.True(t, types[EntityTypeTask])
	assert.True(t, types[EntityTypeEvent])
	assert.True(t, types[EntityTypePointsLedger])
}

func TestSyncRegistersDeviceAndAudits(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	db := newTestDB(t)
	svc := newTestService(t, db)
	familyID, userID := seedFamily(ctx, t, db, "Iversen")

	_, err := svc.Sync(ctx, familyID, userID, &SyncRequest{
		DeviceID:   "device-a",
		DeviceName: "Kitchen tablet",
		Platform:   "android",
		Changes: []Change{{
			EntityType:      EntityTypeTask,
			EntityID:        "task-1",
			Action:          ActionCreate,
			Data:            taskData(t, TaskPayload{Title: "Set table"}),
			ClientTimestamp: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	device := &models.Device{}
	err = db.NewSelect().Model(device).Where("d.id = ?", "device-a").Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, familyID, device.FamilyID)
	assert.Equal(t, "Kitchen tablet", device.Name)
	assert.NotNil(t, device.LastSyncAt)

	audits := []*models.SyncAuditEntry{}
	err = db.NewSelect().Model(&audits).Where("sal.device_id = ?", "device-a").Scan(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditResolutionApplied, audits[0].Resolution)
	assert.Equal(t, "task-1", audits[0].EntityID)
	assert.Equal(t, 1, audits[0].ServerVersion)
}
