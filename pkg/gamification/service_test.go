package gamification

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hearthkeep/hearth/pkg/migrations"
	"github.com/hearthkeep/hearth/pkg/models"
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

func seedCompletion(ctx context.Context, t *testing.T, db *bun.DB, familyID, userID int, at time.Time, points int) {
	t.Helper()

	entry := &models.PointsEntry{
		ID:        uuid.NewString(),
		CreatedAt: at,
		FamilyID:  familyID,
		UserID:    userID,
		Points:    points,
		Reason:    ReasonTaskCompleted,
	}
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	require.NoError(t, err)
}

func TestAwardTaskCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	familyID, userID := seedFamilyUser(ctx, t, db)

	task := &models.Task{
		ID:         "task-1",
		FamilyID:   familyID,
		Title:      "Fold laundry",
		Status:     models.TaskStatusDone,
		AssignedTo: &userID,
		Points:     10,
		Version:    2,
	}
	require.NoError(t, svc.AwardTaskCompletion(ctx, db, task))

	entries, err := svc.ListLedger(ctx, ListLedgerOptions{FamilyID: familyID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Points)
	assert.Equal(t, userID, entries[0].UserID)
	require.NotNil(t, entries[0].TaskID)
	assert.Equal(t, "task-1", *entries[0].TaskID)

	total, err := svc.PointsTotal(ctx, familyID, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestAwardTaskCompletionSkipsUnassignedAndZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	familyID, userID := seedFamilyUser(ctx, t, db)

	require.NoError(t, svc.AwardTaskCompletion(ctx, db, &models.Task{
		ID: "task-1", FamilyID: familyID, Points: 10,
	}))
	require.NoError(t, svc.AwardTaskCompletion(ctx, db, &models.Task{
		ID: "task-2", FamilyID: familyID, AssignedTo: &userID, Points: 0,
	}))

	entries, err := svc.ListLedger(ctx, ListLedgerOptions{FamilyID: familyID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecomputeStreaks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	familyID, userID := seedFamilyUser(ctx, t, db)

	today := time.Now().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)

	// An older three-day run, a gap, then a two-day run ending today.
	for _, offset := range []int{10, 9, 8, 1, 0} {
		seedCompletion(ctx, t, db, familyID, userID, today.Add(-time.Duration(offset)*24*time.Hour), 5)
	}

	require.NoError(t, svc.RecomputeStreaks(ctx, familyID))

	streaks, err := svc.ListStreaks(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 2, streaks[0].CurrentStreak)
	assert.Equal(t, 3, streaks[0].LongestStreak)
	require.NotNil(t, streaks[0].LastCompletedDate)

	// Recompute is idempotent and updates in place.
	require.NoError(t, svc.RecomputeStreaks(ctx, familyID))
	streaks, err = svc.ListStreaks(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 2, streaks[0].CurrentStreak)
}

func TestRecomputeStreaksExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	familyID, userID := seedFamilyUser(ctx, t, db)

	today := time.Now().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)
	for _, offset := range []int{5, 4, 3} {
		seedCompletion(ctx, t, db, familyID, userID, today.Add(-time.Duration(offset)*24*time.Hour), 5)
	}

	require.NoError(t, svc.RecomputeStreaks(ctx, familyID))

	streaks, err := svc.ListStreaks(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 0, streaks[0].CurrentStreak, "a lapsed run is no longer current")
	assert.Equal(t, 3, streaks[0].LongestStreak)
}

func TestRecomputeStreaksAwardsBadges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	familyID, userID := seedFamilyUser(ctx, t, db)

	today := time.Now().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)
	for offset := 0; offset < 7; offset++ {
		seedCompletion(ctx, t, db, familyID, userID, today.Add(-time.Duration(offset)*24*time.Hour), 5)
	}

	require.NoError(t, svc.RecomputeStreaks(ctx, familyID))

	badges, err := svc.ListBadges(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, BadgeStreakWeek, badges[0].Kind)

	// A second recompute never duplicates the award.
	require.NoError(t, svc.RecomputeStreaks(ctx, familyID))
	badges, err = svc.ListBadges(ctx, familyID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}
