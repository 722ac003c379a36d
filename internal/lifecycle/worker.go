package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/mohans/nsforge/asyncx"
	"github.com/mohans/nsforge/internal/models"
	"github.com/mohans/nsforge/internal/store"
)

// Register is the worker callback for TypeRegisterDomain. It is safe to run
// more than once for the same task: once the task is terminal the stored
// outcome is returned and nothing is written.
//
// A registrar rejection returns *RegistrarError after the task has been
// marked failed and the domain claim released.
func (m *Manager) Register(ctx context.Context, p RegisterPayload) (*models.TaskResult, error) {
	log := m.log.With("task_id", p.TaskID, "domain_id", p.DomainID, "domain", p.Domain)

	task, err := m.tasks.GetByID(ctx, p.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("task record gone, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		log.Info("task already terminal, skipping", "status", task.Status)
		return storedOutcome(task)
	}

	domain, err := m.domains.GetByID(ctx, p.DomainID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, m.fail(ctx, p, "domain record no longer exists")
	case err != nil:
		return nil, err
	case !domain.Pending():
		// An earlier attempt resolved the domain but died before the task write.
		res := models.TaskResult{ZoneID: domain.ZoneID, Nameservers: domain.Nameservers}
		return m.succeed(ctx, p, res)
	}

	out := m.registrar.CreateZone(ctx, p.Domain)
	if !out.Success {
		log.Warn("registration rejected", "err", out.Error)
		return nil, m.fail(ctx, p, out.Error)
	}

	if err := m.domains.Resolve(ctx, p.DomainID, out.ZoneID, out.Nameservers, m.now()); err != nil {
		return nil, fmt.Errorf("resolve domain %s: %w", p.DomainID, err)
	}
	return m.succeed(ctx, p, models.TaskResult{ZoneID: out.ZoneID, Nameservers: out.Nameservers})
}

func (m *Manager) succeed(ctx context.Context, p RegisterPayload, res models.TaskResult) (*models.TaskResult, error) {
	applied, err := m.tasks.MarkSucceeded(ctx, p.TaskID, res, m.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		m.log.Info("task finished elsewhere", "task_id", p.TaskID)
	} else {
		m.log.Info("registration succeeded", "task_id", p.TaskID, "domain", p.Domain, "zone_id", res.ZoneID)
	}
	return &res, nil
}

// fail records msg on the task and, only if that write applied, deletes the
// unresolved domain claim. A claim that survives a failed delete is released
// by the sweep (StatusService.ReleaseOrphans).
func (m *Manager) fail(ctx context.Context, p RegisterPayload, msg string) error {
	applied, err := m.tasks.MarkFailed(ctx, p.TaskID, msg, m.now())
	if err != nil {
		return err
	}
	if applied {
		if _, err := m.domains.DeletePending(ctx, p.DomainID); err != nil {
			m.log.Error("release domain failed", "domain_id", p.DomainID, "err", err)
		}
	}
	return &RegistrarError{Message: msg}
}

func storedOutcome(t *models.Task) (*models.TaskResult, error) {
	if t.Status == models.TaskSuccess {
		return t.Result, nil
	}
	msg := "registration failed"
	if t.Error != nil {
		msg = *t.Error
	}
	return nil, &RegistrarError{Message: msg}
}

// RegisterHandler returns the asynq handler for TypeRegisterDomain. Registrar
// rejections are never retried; store errors follow the queue's retry policy.
func (m *Manager) RegisterHandler() asynq.Handler {
	return asyncx.HandleJSON(func(ctx context.Context, p RegisterPayload) (any, error) {
		res, err := m.Register(ctx, p)
		var rerr *RegistrarError
		if errors.As(err, &rerr) {
			return nil, asyncx.Permanent(err)
		}
		if err != nil || res == nil {
			return nil, err
		}
		return res, nil
	})
}
