package devices

import (
	"context"

	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service handles device listings. Devices are never created here; they
// register themselves implicitly on their first sync.
type Service struct {
	db *bun.DB
}

// NewService creates a new devices service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// ListDevices returns a family's known devices, most recently seen first.
func (s *Service) ListDevices(ctx context.Context, familyID int) ([]*models.Device, error) {
	devices := []*models.Device{}
	err := s.db.NewSelect().
		Model(&devices).
		Relation("User").
		Where("d.family_id = ?", familyID).
		Order("d.last_seen_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return devices, nil
}
