package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/migrations"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestService(t *testing.T, db *bun.DB) *Service {
	t.Helper()

	return NewService(db, &config.Config{SyncMaxBatchSize: 200})
}

// seedFamily inserts a family with one parent user and returns their IDs.
func seedFamily(ctx context.Context, t *testing.T, db *bun.DB, name string) (int, int) {
	t.Helper()

	now := time.Now().UTC()
	family := &models.Family{Name: name, CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(family).Exec(ctx)
	require.NoError(t, err)

	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		FamilyID:     family.ID,
		Name:         name + " Parent",
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         models.RoleParent,
		IsActive:     true,
	}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	return family.ID, user.ID
}

func seedTask(ctx context.Context, t *testing.T, db *bun.DB, task *models.Task) *models.Task {
	t.Helper()

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Status == "" {
		task.Status = models.TaskStatusOpen
	}
	if task.Version == 0 {
		task.Version = 1
	}
	_, err := db.NewInsert().Model(task).Exec(ctx)
	require.NoError(t, err)
	return task
}

func seedEvent(ctx context.Context, t *testing.T, db *bun.DB, event *models.Event) *models.Event {
	t.Helper()

	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = now
	}
	if event.StartsAt.IsZero() {
		event.StartsAt = now.Add(24 * time.Hour)
	}
	_, err := db.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)
	return event
}

func taskData(t *testing.T, payload TaskPayload) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func eventData(t *testing.T, payload EventPayload) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func fetchTask(ctx context.Context, t *testing.T, db *bun.DB, id string) *models.Task {
	t.Helper()

	task := &models.Task{}
	err := db.NewSelect().Model(task).Where("t.id = ?", id).Scan(ctx)
	require.NoError(t, err)
	return task
}
