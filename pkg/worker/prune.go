package worker

import (
	"context"
	"time"

	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/pkg/errors"
)

// PruneAuditLog deletes sync audit entries older than the retention window
// and returns how many rows were removed. The audit trail is diagnostic
// history, not sync state; deleting it never affects resolution.
func (w *Worker) PruneAuditLog(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-w.config.AuditRetention)

	res, err := w.db.NewDelete().
		Model((*models.SyncAuditEntry)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n, nil
}
