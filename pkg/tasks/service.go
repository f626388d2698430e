package tasks

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service handles task operations for the interactive CRUD path. Every
// mutation advances the task version by exactly one, the same contract the
// sync engine relies on, so offline devices can detect edits made here.
type Service struct {
	db                  *bun.DB
	gamificationService *gamification.Service
}

// NewService creates a new tasks service.
func NewService(db *bun.DB) *Service {
	return &Service{
		db:                  db,
		gamificationService: gamification.NewService(db),
	}
}

// ListTasksOptions contains options for listing tasks.
type ListTasksOptions struct {
	FamilyID   int
	Status     *string
	AssignedTo *int
	Limit      *int
	Offset     *int
}

// ListTasks returns a family's live tasks, most recently touched first.
func (s *Service) ListTasks(ctx context.Context, opts ListTasksOptions) ([]*models.Task, error) {
	tasks := []*models.Task{}
	q := s.db.NewSelect().
		Model(&tasks).
		Where("t.family_id = ?", opts.FamilyID).
		Where("t.deleted_at IS NULL").
		Order("t.updated_at DESC")
	if opts.Status != nil {
		q = q.Where("t.status = ?", *opts.Status)
	}
	if opts.AssignedTo != nil {
		q = q.Where("t.assigned_to = ?", *opts.AssignedTo)
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
	return tasks, nil
}

// RetrieveTask returns one live task scoped to the family.
func (s *Service) RetrieveTask(ctx context.Context, familyID int, id string) (*models.Task, error) {
	task := &models.Task{}
	err := s.db.NewSelect().
		Model(task).
		Where("t.id = ?", id).
		Where("t.family_id = ?", familyID).
		Where("t.deleted_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("Task")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return task, nil
}

// CreateTaskOptions contains options for creating a task.
type CreateTaskOptions struct {
	FamilyID   int
	Title      string
	Notes      string
	AssignedTo *int
	DueDate    *time.Time
	Points     int
}

// CreateTask creates a new task at version 1.
func (s *Service) CreateTask(ctx context.Context, opts CreateTaskOptions) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		FamilyID:   opts.FamilyID,
		Title:      opts.Title,
		Notes:      opts.Notes,
		Status:     models.TaskStatusOpen,
		AssignedTo: opts.AssignedTo,
		DueDate:    opts.DueDate,
		Points:     opts.Points,
		Version:    1,
	}
	_, err := s.db.NewInsert().Model(task).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return task, nil
}

// UpdateTaskOptions contains options for updating a task. Version is the
// version the caller last saw; the update is rejected if the row has moved.
type UpdateTaskOptions struct {
	FamilyID   int
	ID         string
	Version    int
	Title      *string
	Notes      *string
	AssignedTo *int
	DueDate    *time.Time
	Points     *int
}

// UpdateTask patches a task behind a version check. Status changes do not go
// through here; completion has its own operation so the points award can
// never be skipped.
func (s *Service) UpdateTask(ctx context.Context, opts UpdateTaskOptions) (*models.Task, error) {
	// Existence first, so a missing task is a 404 rather than a 409.
	task, err := s.RetrieveTask(ctx, opts.FamilyID, opts.ID)
	if err != nil {
		return nil, err
	}

	q := s.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Set("version = version + 1").
		Where("id = ?", opts.ID).
		Where("family_id = ?", opts.FamilyID).
		Where("deleted_at IS NULL").
		Where("version = ?", opts.Version)
	if opts.Title != nil {
		q = q.Set("title = ?", *opts.Title)
	}
	if opts.Notes != nil {
		q = q.Set("notes = ?", *opts.Notes)
	}
	if opts.AssignedTo != nil {
		q = q.Set("assigned_to = ?", *opts.AssignedTo)
	}
	if opts.DueDate != nil {
		q = q.Set("due_date = ?", *opts.DueDate)
	}
	if opts.Points != nil {
		q = q.Set("points = ?", *opts.Points)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if n == 0 {
		return nil, errcodes.VersionConflict("Task")
	}

	task, err = s.RetrieveTask(ctx, opts.FamilyID, opts.ID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask marks a task done and awards its points. Completing an
// already-done task is a no-op so repeated taps never double-award.
func (s *Service) CompleteTask(ctx context.Context, familyID int, id string) (*models.Task, error) {
	task, err := s.RetrieveTask(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if task.IsDone() {
		return task, nil
	}

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Task)(nil)).
			Set("status = ?", models.TaskStatusDone).
			Set("updated_at = ?", time.Now().UTC()).
			Set("version = version + 1").
			Where("id = ?", id).
			Where("family_id = ?", familyID).
			Where("deleted_at IS NULL").
			Where("status != ?", models.TaskStatusDone).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			// Raced with another completion; the award already happened.
			return nil
		}
		return s.gamificationService.AwardTaskCompletion(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	return s.RetrieveTask(ctx, familyID, id)
}

// DeleteTask tombstones a task. The row survives so offline devices learn
// about the deletion on their next sync.
func (s *Service) DeleteTask(ctx context.Context, familyID int, id string) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("deleted_at = ?", now).
		Set("updated_at = ?", now).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("family_id = ?", familyID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errcodes.NotFound("Task")
	}
	return nil
}
