package lifecycle

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically reconciles pending tasks nobody is polling and releases
// domain claims whose task failed. It never times a task out; a task whose job
// vanished stays pending.
type Sweeper struct {
	cron   *cron.Cron
	status *StatusService
	limit  int
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper schedules status.ReconcilePending on schedule, a cron spec such
// as "@every 1m".
func NewSweeper(status *StatusService, schedule string, limit int, log *slog.Logger) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		status: status,
		limit:  limit,
		log:    log.With("component", "sweeper"),
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// RunOnce performs a single sweep: pending tasks are reconciled, then claims
// left behind by failed tasks are released.
func (s *Sweeper) RunOnce() {
	n, err := s.status.ReconcilePending(s.ctx, s.limit)
	if err != nil {
		s.log.Warn("sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Info("sweep reconciled tasks", "count", n)
	}
	released, err := s.status.ReleaseOrphans(s.ctx, s.limit)
	if err != nil {
		s.log.Warn("release orphaned domains failed", "err", err)
		return
	}
	if released > 0 {
		s.log.Info("sweep released domains", "count", released)
	}
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop cancels an in-flight sweep and waits for it to return.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
