package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service handles calendar event operations. Events have no version column;
// the CRUD path stamps updated_at and the last write wins, matching how the
// sync engine treats them.
type Service struct {
	db *bun.DB
}

// NewService creates a new events service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// ListEventsOptions contains options for listing events.
type ListEventsOptions struct {
	FamilyID int
	From     *time.Time
	To       *time.Time
	Limit    *int
	Offset   *int
}

// ListEvents returns a family's live events in calendar order.
func (s *Service) ListEvents(ctx context.Context, opts ListEventsOptions) ([]*models.Event, error) {
	events := []*models.Event{}
	q := s.db.NewSelect().
		Model(&events).
		Where("e.family_id = ?", opts.FamilyID).
		Where("e.deleted_at IS NULL").
		Order("e.starts_at ASC")
	if opts.From != nil {
		q = q.Where("e.starts_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("e.starts_at < ?", *opts.To)
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
	return events, nil
}

// RetrieveEvent returns one live event scoped to the family.
func (s *Service) RetrieveEvent(ctx context.Context, familyID int, id string) (*models.Event, error) {
	event := &models.Event{}
	err := s.db.NewSelect().
		Model(event).
		Where("e.id = ?", id).
		Where("e.family_id = ?", familyID).
		Where("e.deleted_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("Event")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return event, nil
}

// CreateEventOptions contains options for creating an event.
type CreateEventOptions struct {
	FamilyID int
	Title    string
	Location string
	StartsAt time.Time
	EndsAt   *time.Time
	AllDay   bool
}

// CreateEvent creates a new event.
func (s *Service) CreateEvent(ctx context.Context, opts CreateEventOptions) (*models.Event, error) {
	now := time.Now().UTC()
	event := &models.Event{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		FamilyID:  opts.FamilyID,
		Title:     opts.Title,
		Location:  opts.Location,
		StartsAt:  opts.StartsAt,
		EndsAt:    opts.EndsAt,
		AllDay:    opts.AllDay,
	}
	_, err := s.db.NewInsert().Model(event).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return event, nil
}

// UpdateEventOptions contains options for updating an event.
type UpdateEventOptions struct {
	FamilyID int
	ID       string
	Title    *string
	Location *string
	StartsAt *time.Time
	EndsAt   *time.Time
	AllDay   *bool
}

// UpdateEvent patches an event. No version check; the latest write wins.
func (s *Service) UpdateEvent(ctx context.Context, opts UpdateEventOptions) (*models.Event, error) {
	q := s.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", opts.ID).
		Where("family_id = ?", opts.FamilyID).
		Where("deleted_at IS NULL")
	if opts.Title != nil {
		q = q.Set("title = ?", *opts.Title)
	}
	if opts.Location != nil {
		q = q.Set("location = ?", *opts.Location)
	}
	if opts.StartsAt != nil {
		q = q.Set("starts_at = ?", *opts.StartsAt)
	}
	if opts.EndsAt != nil {
		q = q.Set("ends_at = ?", *opts.EndsAt)
	}
	if opts.AllDay != nil {
		q = q.Set("all_day = ?", *opts.AllDay)
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
		return nil, errcodes.NotFound("Event")
	}

	return s.RetrieveEvent(ctx, opts.FamilyID, opts.ID)
}

// DeleteEvent tombstones an event so offline devices see the deletion.
func (s *Service) DeleteEvent(ctx context.Context, familyID int, id string) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("deleted_at = ?", now).
		Set("updated_at = ?", now).
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
		return errcodes.NotFound("Event")
	}
	return nil
}
