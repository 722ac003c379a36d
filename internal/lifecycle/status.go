package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mohans/nsforge/asyncx"
	"github.com/mohans/nsforge/internal/models"
	"github.com/mohans/nsforge/internal/store"
)

const pendingMessage = "Task is still processing"

// StatusReport is what a client sees when polling a task.
type StatusReport struct {
	Status  models.TaskStatus  `json:"status"`
	Result  *models.TaskResult `json:"result,omitempty"`
	Error   *string            `json:"error,omitempty"`
	Message string             `json:"message,omitempty"`
}

func reportOf(t *models.Task) StatusReport {
	r := StatusReport{Status: t.Status, Result: t.Result, Error: t.Error}
	if t.Status == models.TaskPending {
		r.Message = pendingMessage
	}
	return r
}

// StatusService answers task status queries, lazily reconciling pending
// tasks with the execution layer's live state.
type StatusService struct {
	tasks      store.TaskStore
	domains    store.DomainStore
	dispatcher Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

func NewStatusService(tasks store.TaskStore, domains store.DomainStore, dispatcher Dispatcher, log *slog.Logger) *StatusService {
	if log == nil {
		log = slog.Default()
	}
	return &StatusService{
		tasks:      tasks,
		domains:    domains,
		dispatcher: dispatcher,
		log:        log.With("component", "status"),
		now:        time.Now,
	}
}

// Status returns the state of taskID as owned by userID.
func (s *StatusService) Status(ctx context.Context, taskID, userID string) (StatusReport, error) {
	t, err := s.tasks.GetForUser(ctx, taskID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return StatusReport{}, ErrNotFound
	}
	if err != nil {
		return StatusReport{}, err
	}
	if t.Status.Terminal() {
		return reportOf(t), nil
	}
	t, err = s.reconcile(ctx, t)
	if err != nil {
		return StatusReport{}, err
	}
	return reportOf(t), nil
}

// ReconcilePending reconciles up to limit pending tasks and returns how many
// reached a terminal state.
func (s *StatusService) ReconcilePending(ctx context.Context, limit int) (int, error) {
	pending, err := s.tasks.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		t, err := s.reconcile(ctx, &pending[i])
		if err != nil {
			s.log.Warn("reconcile failed", "task_id", pending[i].ID, "err", err)
			continue
		}
		if t.Status.Terminal() {
			done++
		}
	}
	return done, nil
}

// reconcile writes a terminal live state through to the store. It never
// overwrites a terminal record: when the conditional write does not apply,
// the stored record is returned instead.
func (s *StatusService) reconcile(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t.JobID == "" {
		return t, nil
	}
	st, err := s.dispatcher.Poll(ctx, asyncx.JobHandle{ID: t.JobID, Queue: t.Queue})
	if err != nil {
		// The execution layer being unreachable leaves the task pending.
		s.log.Warn("poll job failed", "task_id", t.ID, "job_id", t.JobID, "err", err)
		return t, nil
	}

	if !st.Terminal() {
		return t, nil
	}
	finished := s.now()
	if st.CompletedAt != nil {
		finished = *st.CompletedAt
	}

	var applied bool
	if st.State == asyncx.StateSucceeded {
		var res models.TaskResult
		if len(st.Result) > 0 {
			if err := json.Unmarshal(st.Result, &res); err != nil {
				return nil, err
			}
		}
		applied, err = s.tasks.MarkSucceeded(ctx, t.ID, res, finished)
	} else {
		applied, err = s.settleFailure(ctx, t, st.Err, finished)
	}
	if err != nil {
		return nil, err
	}
	if applied {
		s.log.Info("task reconciled", "task_id", t.ID, "job_id", t.JobID, "state", st.State)
	}
	return s.tasks.GetByID(ctx, t.ID)
}

// settleFailure applies a failed job to t. A domain the job already resolved
// means only the task write was lost, so the task succeeds with the stored
// zone. Otherwise the task fails and the unresolved claim is released.
func (s *StatusService) settleFailure(ctx context.Context, t *models.Task, msg string, finished time.Time) (bool, error) {
	d, err := s.domains.GetByID(ctx, t.DomainID)
	switch {
	case err == nil && !d.Pending():
		res := models.TaskResult{ZoneID: d.ZoneID, Nameservers: d.Nameservers}
		return s.tasks.MarkSucceeded(ctx, t.ID, res, finished)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, err
	}
	applied, err := s.tasks.MarkFailed(ctx, t.ID, msg, finished)
	if err != nil || !applied || d == nil {
		return applied, err
	}
	s.release(ctx, t.DomainID)
	return true, nil
}

// ReleaseOrphans deletes up to limit unresolved domains whose task already
// failed and returns how many were removed.
func (s *StatusService) ReleaseOrphans(ctx context.Context, limit int) (int, error) {
	orphans, err := s.domains.ListOrphaned(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range orphans {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if s.release(ctx, d.ID) {
			n++
		}
	}
	return n, nil
}

// release deletes the domain claim if it is still unresolved. Errors are
// logged; ReleaseOrphans picks the claim up again on the next sweep.
func (s *StatusService) release(ctx context.Context, domainID string) bool {
	deleted, err := s.domains.DeletePending(ctx, domainID)
	if err != nil {
		s.log.Error("release domain failed", "domain_id", domainID, "err", err)
		return false
	}
	if deleted {
		s.log.Info("domain claim released", "domain_id", domainID)
	}
	return deleted
}
