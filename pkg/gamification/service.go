package gamification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Ledger reasons.
const (
	ReasonTaskCompleted = "task_completed"
	ReasonAdjustment    = "adjustment"
)

// Badge kinds awarded by the streak recompute.
const (
	BadgeStreakWeek  = "streak_7"
	BadgeStreakMonth = "streak_30"
)

var streakBadges = map[string]int{
	BadgeStreakWeek:  7,
	BadgeStreakMonth: 30,
}

// Service handles the points ledger, streaks, and badges. The ledger is
// append-only: this service is the only writer, and nothing ever updates or
// deletes an entry.
type Service struct {
	db *bun.DB
}

// NewService creates a new gamification service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// AwardTaskCompletion appends a ledger entry for a completed task. idb is the
// caller's transaction when the completion itself is part of one, so the
// award cannot outlive a rolled-back completion. Unassigned and zero-point
// tasks award nothing.
func (s *Service) AwardTaskCompletion(ctx context.Context, idb bun.IDB, task *models.Task) error {
	if task.AssignedTo == nil || task.Points <= 0 {
		return nil
	}

	entry := &models.PointsEntry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		FamilyID:  task.FamilyID,
		UserID:    *task.AssignedTo,
		TaskID:    &task.ID,
		Points:    task.Points,
		Reason:    ReasonTaskCompleted,
	}
	_, err := idb.NewInsert().Model(entry).Exec(ctx)
	return errors.WithStack(err)
}

// ListLedgerOptions contains options for listing ledger entries.
type ListLedgerOptions struct {
	FamilyID int
	UserID   *int
	Limit    *int
	Offset   *int
}

// ListLedger returns ledger entries for a family, newest first.
func (s *Service) ListLedger(ctx context.Context, opts ListLedgerOptions) ([]*models.PointsEntry, error) {
	entries := []*models.PointsEntry{}
	q := s.db.NewSelect().
		Model(&entries).
		Where("pl.family_id = ?", opts.FamilyID).
		Order("pl.created_at DESC")
	if opts.UserID != nil {
		q = q.Where("pl.user_id = ?", *opts.UserID)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return entries, nil
}

// PointsTotal returns a user's lifetime points balance.
func (s *Service) PointsTotal(ctx context.Context, familyID, userID int) (int, error) {
	var total sql.NullInt64
	err := s.db.NewSelect().
		Model((*models.PointsEntry)(nil)).
		ColumnExpr("SUM(points)").
		Where("pl.family_id = ?", familyID).
		Where("pl.user_id = ?", userID).
		Scan(ctx, &total)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(total.Int64), nil
}

// ListStreaks returns the streak rows for a family.
func (s *Service) ListStreaks(ctx context.Context, familyID int) ([]*models.UserStreak, error) {
	streaks := []*models.UserStreak{}
	err := s.db.NewSelect().
		Model(&streaks).
		Where("us.family_id = ?", familyID).
		Order("us.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return streaks, nil
}

// ListBadges returns the badges awarded within a family, newest first.
func (s *Service) ListBadges(ctx context.Context, familyID int) ([]*models.Badge, error) {
	badges := []*models.Badge{}
	err := s.db.NewSelect().
		Model(&badges).
		Where("bg.family_id = ?", familyID).
		Order("bg.awarded_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return badges, nil
}

// RecomputeStreaks rebuilds every streak row for one family from the ledger.
// Streaks are derived state: clients can read them but their writes are
// rejected, and this derivation is the single source of truth. A streak is
// the run of consecutive days with at least one completion, still current if
// it includes today or yesterday.
func (s *Service) RecomputeStreaks(ctx context.Context, familyID int) error {
	entries := []*models.PointsEntry{}
	err := s.db.NewSelect().
		Model(&entries).
		Where("pl.family_id = ?", familyID).
		Where("pl.reason = ?", ReasonTaskCompleted).
		Order("pl.created_at ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	days := map[int][]time.Time{}
	for _, entry := range entries {
		day := entry.CreatedAt.UTC().Truncate(24 * time.Hour)
		userDays := days[entry.UserID]
		if len(userDays) == 0 || !userDays[len(userDays)-1].Equal(day) {
			days[entry.UserID] = append(userDays, day)
		}
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for userID, userDays := range days {
			current, longest := computeStreaks(userDays, now)
			last := userDays[len(userDays)-1]

			streak := &models.UserStreak{
				ID:                uuid.NewString(),
				UpdatedAt:         time.Now().UTC(),
				FamilyID:          familyID,
				UserID:            userID,
				CurrentStreak:     current,
				LongestStreak:     longest,
				LastCompletedDate: &last,
			}
			_, err := tx.NewInsert().
				Model(streak).
				On("CONFLICT (user_id) DO UPDATE").
				Set("current_streak = EXCLUDED.current_streak").
				Set("longest_streak = EXCLUDED.longest_streak").
				Set("last_completed_date = EXCLUDED.last_completed_date").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			if err := s.awardStreakBadges(ctx, tx, familyID, userID, current); err != nil {
				return err
			}
		}
		return nil
	})
}

// computeStreaks walks the sorted distinct completion days and returns the
// current and longest runs. A run is current only if its last day is today or
// yesterday; a completion this morning keeps yesterday's run alive.
func computeStreaks(days []time.Time, today time.Time) (int, int) {
	current := 0
	longest := 0
	run := 0

	for i, day := range days {
		if i == 0 || day.Sub(days[i-1]) > 24*time.Hour {
			run = 1
		} else {
			run++
		}
		if run > longest {
			longest = run
		}
		if i == len(days)-1 && today.Sub(day) <= 24*time.Hour {
			current = run
		}
	}
	return current, longest
}

func (s *Service) awardStreakBadges(ctx context.Context, tx bun.Tx, familyID, userID, currentStreak int) error {
	for kind, threshold := range streakBadges {
		if currentStreak < threshold {
			continue
		}

		exists, err := tx.NewSelect().
			Model((*models.Badge)(nil)).
			Where("bg.family_id = ?", familyID).
			Where("bg.user_id = ?", userID).
			Where("bg.kind = ?", kind).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			continue
		}

		badge := &models.Badge{
			ID:        uuid.NewString(),
			FamilyID:  familyID,
			UserID:    userID,
			Kind:      kind,
			AwardedAt: time.Now().UTC(),
		}
		_, err = tx.NewInsert().Model(badge).Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ListFamilyIDs returns every family id, for the maintenance worker's
// recompute sweep.
func (s *Service) ListFamilyIDs(ctx context.Context) ([]int, error) {
	ids := []int{}
	err := s.db.NewSelect().
		Model((*models.Family)(nil)).
		Column("id").
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ids, nil
}
