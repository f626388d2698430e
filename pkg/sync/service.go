package sync

import (
	"context"
	"time"

	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Session states. A session moves strictly forward: received, validated,
// resolved, applied, responded. Aborted is terminal and only entered from
// received (oversized batch) or applied (storage failure after rollback).
const (
	sessionReceived  = "received"
	sessionValidated = "validated"
	sessionResolved  = "resolved"
	sessionApplied   = "applied"
	sessionResponded = "responded"
	sessionAborted   = "aborted"
)

// Service orchestrates sync sessions.
type Service struct {
	db           *bun.DB
	maxBatchSize int
	reader       *stateReader
	applier      *applier
	delta        *deltaReader
}

// NewService creates a new sync service.
func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{
		db:           db,
		maxBatchSize: cfg.SyncMaxBatchSize,
		reader:       &stateReader{db: db},
		applier:      &applier{db: db, gam: gamification.NewService(db)},
		delta:        &deltaReader{db: db},
	}
}

// session tracks one sync request through its lifecycle, mostly for the
// request log.
type session struct {
	state string
	log   logger.Logger
}

func (s *session) advance(state string) {
	s.state = state
	s.log.Debug("sync session", logger.Data{"state": state})
}

// Sync processes one batch from one device. Malformed changes are counted and
// skipped, conflicts are resolved per entity policy and reported in the
// response, and everything accepted is applied atomically. The returned
// checkpoint is safe for the client to store: no server change with a later
// timestamp existed when it was computed.
func (s *Service) Sync(ctx context.Context, familyID, userID int, req *SyncRequest) (*SyncResponse, error) {
	sess := &session{
		log: logger.FromContext(ctx).Data(logger.Data{
			"device_id":    req.DeviceID,
			"change_count": len(req.Changes),
		}),
	}
	sess.advance(sessionReceived)

	if len(req.Changes) > s.maxBatchSize {
		sess.advance(sessionAborted)
		return nil, errcodes.BatchTooLarge(s.maxBatchSize)
	}
	req.userID = userID

	valid, malformed := splitValid(req.Changes)
	for _, reason := range malformed {
		sess.log.Warn("rejected malformed change", logger.Data{"reason": reason})
	}
	errorCount := len(malformed)
	sess.advance(sessionValidated)

	states, err := s.reader.load(ctx, valid)
	if err != nil {
		sess.advance(sessionAborted)
		return nil, err
	}

	// A change addressing another family's entity is treated the same as a
	// malformed one. It is not a conflict; nothing about the row leaks back.
	decisions := make([]decision, 0, len(valid))
	for _, change := range valid {
		state := states[stateKey{change.EntityType, change.EntityID}]
		if state.state != stateMissing && state.familyID != familyID {
			sess.log.Warn("rejected cross-family change", logger.Data{
				"entity_type": change.EntityType,
				"entity_id":   change.EntityID,
			})
			errorCount++
			continue
		}
		decisions = append(decisions, resolve(change, state))
	}
	sess.advance(sessionResolved)

	now := time.Now().UTC()
	result, err := s.applier.apply(ctx, familyID, req, decisions, now)
	if err != nil {
		sess.advance(sessionAborted)
		sess.log.Err(err).Error("sync apply failed, batch rolled back")
		return nil, errcodes.TransientStorage()
	}
	sess.advance(sessionApplied)

	serverChanges, checkpoint, err := s.delta.collect(ctx, familyID, req.LastSyncAt)
	if err != nil {
		sess.advance(sessionAborted)
		return nil, err
	}

	conflicts := []Conflict{}
	for i := range decisions {
		if decisions[i].conflict != nil {
			conflicts = append(conflicts, *decisions[i].conflict)
		}
	}

	resp := &SyncResponse{
		ServerChanges: serverChanges,
		Conflicts:     conflicts,
		LastSyncAt:    checkpoint,
		Success:       len(conflicts) == 0,
		AppliedCount:  len(result.applied),
		ErrorCount:    errorCount,
	}
	sess.advance(sessionResponded)
	return resp, nil
}
