package worker

import (
	"context"
	"time"

	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Worker runs periodic maintenance: streak recomputation and audit log
// pruning. There is no job queue; both tasks are idempotent so a missed or
// doubled tick is harmless.
type Worker struct {
	config *config.Config
	log    logger.Logger
	db     *bun.DB

	gamificationService *gamification.Service

	shutdown chan struct{}
	done     chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	return &Worker{
		config: cfg,
		log:    logger.New(),
		db:     db,

		gamificationService: gamification.NewService(db),

		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	timer := time.NewTimer(w.config.WorkerInterval)

	for {
		select {
		case <-w.shutdown:
			w.done <- struct{}{}
			return
		case <-timer.C:
			ctx := w.log.WithContext(context.Background())
			if err := w.RunMaintenance(ctx); err != nil {
				w.log.Err(err).Error("maintenance error")
			}
			timer.Reset(w.config.WorkerInterval)
		}
	}
}

// RunMaintenance executes one maintenance pass.
func (w *Worker) RunMaintenance(ctx context.Context) error {
	log := logger.FromContext(ctx)

	familyIDs, err := w.gamificationService.ListFamilyIDs(ctx)
	if err != nil {
		return err
	}
	for _, familyID := range familyIDs {
		if err := w.gamificationService.RecomputeStreaks(ctx, familyID); err != nil {
			log.Err(err).Error("streak recompute error", logger.Data{"family_id": familyID})
		}
	}

	pruned, err := w.PruneAuditLog(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Info("pruned audit log", logger.Data{"rows": pruned})
	}

	return nil
}

func (w *Worker) Shutdown() {
	close(w.shutdown)
	<-w.done
}
