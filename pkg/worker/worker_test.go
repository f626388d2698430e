package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/hearthkeep/hearth/pkg/migrations"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
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

func seedFamilyUser(ctx context.Context, t *testing.T, db *bun.DB) (int, int) {
	t.Helper()

	now := time.Now().UTC()
	family := &models.Family{Name: "Testers", CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(family).Exec(ctx)
	require.NoError(t, err)

	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		FamilyID:     family.ID,
		Name:         "Kid",
		Email:        "kid@example.com",
		PasswordHash: "x",
		Role:         models.RoleChild,
		IsActive:     true,
	}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	return family.ID, user.ID
}

func TestPruneAuditLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	familyID, _ := seedFamilyUser(ctx, t, db)

	cfg := &config.Config{AuditRetention: 90 * 24 * time.Hour}
	w := New(cfg, db)

	now := time.Now().UTC()
	for _, age := range []time.Duration{time.Hour, 91 * 24 * time.Hour, 200 * 24 * time.Hour} {
		entry := &models.SyncAuditEntry{
			CreatedAt:  now.Add(-age),
			FamilyID:   familyID,
			DeviceID:   "device-a",
			EntityType: "task",
			EntityID:   uuid.NewString(),
			Action:     "update",
			Resolution: models.AuditResolutionApplied,
		}
		_, err := db.NewInsert().Model(entry).Exec(ctx)
		require.NoError(t, err)
	}

	pruned, err := w.PruneAuditLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	count, err := db.NewSelect().Model((*models.SyncAuditEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunMaintenance(t *testing.T) {
	t.Parallel()

	ctx := logger.New().WithContext(context.Background())
	db := newTestDB(t)
	familyID, userID := seedFamilyUser(ctx, t, db)

	entry := &models.PointsEntry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		FamilyID:  familyID,
		UserID:    userID,
		Points:    5,
		Reason:    gamification.ReasonTaskCompleted,
	}
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	require.NoError(t, err)

	cfg := &config.Config{AuditRetention: 90 * 24 * time.Hour, WorkerInterval: time.Minute}
	w := New(cfg, db)

	require.NoError(t, w.RunMaintenance(ctx))

	streaks := []*models.UserStreak{}
	err = db.NewSelect().Model(&streaks).Where("us.family_id = ?", familyID).Scan(ctx)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 1, streaks[0].CurrentStreak)
}

func TestWorkerStartShutdown(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := &config.Config{AuditRetention: 90 * 24 * time.Hour, WorkerInterval: time.Hour}
	w := New(cfg, db)

	w.Start()
	w.Shutdown()
}
