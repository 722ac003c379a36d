// Package lifecycle orchestrates domain registrations: it creates the pending
// records, dispatches the registration job, applies the job's outcome and
// answers status queries.
//
// Both the worker callback and the status query only ever move a task out of
// pending through the store's conditional updates, so whichever observes the
// terminal outcome first wins and the other becomes a no-op.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mohans/nsforge/asyncx"
	"github.com/mohans/nsforge/internal/models"
	"github.com/mohans/nsforge/internal/registrar"
	"github.com/mohans/nsforge/internal/store"
)

// TypeRegisterDomain is the job type of the registration worker.
const TypeRegisterDomain = "domain:register"

// Dispatcher is the background execution layer.
type Dispatcher interface {
	Submit(ctx context.Context, taskType string, payload any) (asyncx.JobHandle, error)
	Poll(ctx context.Context, h asyncx.JobHandle) (asyncx.JobState, error)
}

// RegisterPayload is captured at dispatch time and handed to the worker.
type RegisterPayload struct {
	TaskID   string `json:"task_id"`
	DomainID string `json:"domain_id"`
	UserID   string `json:"user_id"`
	Domain   string `json:"domain"`
}

// Submission identifies the records created by Submit.
type Submission struct {
	DomainID string `json:"domain_id"`
	TaskID   string `json:"task_id"`
}

// Manager holds no state of its own beyond its collaborators.
type Manager struct {
	domains    store.DomainStore
	tasks      store.TaskStore
	dispatcher Dispatcher
	registrar  registrar.Registrar
	log        *slog.Logger
	now        func() time.Time
}

func NewManager(domains store.DomainStore, tasks store.TaskStore, dispatcher Dispatcher, reg registrar.Registrar, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		domains:    domains,
		tasks:      tasks,
		dispatcher: dispatcher,
		registrar:  reg,
		log:        log.With("component", "lifecycle"),
		now:        time.Now,
	}
}

// Submit claims name for userID and dispatches its registration. name must
// already be validated (see NormalizeDomain). The registrar is not contacted.
func (m *Manager) Submit(ctx context.Context, userID, name string) (Submission, error) {
	exists, err := m.domains.ExistsByName(ctx, name)
	if err != nil {
		return Submission{}, err
	}
	if exists {
		return Submission{}, ErrConflict
	}

	domain := &models.Domain{ID: uuid.NewString(), UserID: userID, Name: name}
	if err := m.domains.Create(ctx, domain); err != nil {
		// Lost the race against a concurrent submission of the same name.
		if errors.Is(err, store.ErrDuplicate) {
			return Submission{}, ErrConflict
		}
		return Submission{}, err
	}

	task := &models.Task{ID: uuid.NewString(), UserID: userID, DomainID: domain.ID}
	if err := m.tasks.InsertPending(ctx, task); err != nil {
		m.rollbackSubmission(ctx, "", domain.ID)
		return Submission{}, err
	}

	job, err := m.dispatcher.Submit(ctx, TypeRegisterDomain, RegisterPayload{
		TaskID:   task.ID,
		DomainID: domain.ID,
		UserID:   userID,
		Domain:   name,
	})
	if err != nil {
		m.rollbackSubmission(ctx, task.ID, domain.ID)
		return Submission{}, fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	if err := m.tasks.SetJob(ctx, task.ID, job.ID, job.Queue); err != nil {
		// The job is already running; status polling falls back to the
		// stored state until the worker finishes.
		m.log.Error("record job id failed", "task_id", task.ID, "job_id", job.ID, "err", err)
	}

	m.log.Info("registration submitted", "domain", name, "domain_id", domain.ID, "task_id", task.ID, "job_id", job.ID)
	return Submission{DomainID: domain.ID, TaskID: task.ID}, nil
}

func (m *Manager) rollbackSubmission(ctx context.Context, taskID, domainID string) {
	if taskID != "" {
		if err := m.tasks.Delete(ctx, taskID); err != nil {
			m.log.Error("rollback task failed", "task_id", taskID, "err", err)
		}
	}
	if _, err := m.domains.Delete(ctx, domainID); err != nil {
		m.log.Error("rollback domain failed", "domain_id", domainID, "err", err)
	}
}

// Lookup returns the domain name owned by userID.
func (m *Manager) Lookup(ctx context.Context, userID, name string) (*models.Domain, error) {
	d, err := m.domains.GetByNameForUser(ctx, name, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return d, err
}

// List returns every domain owned by userID.
func (m *Manager) List(ctx context.Context, userID string) ([]models.Domain, error) {
	return m.domains.ListForUser(ctx, userID)
}

// Remove deletes the zone at the registrar and then the local record. When
// the registrar call fails the local record is left untouched.
func (m *Manager) Remove(ctx context.Context, userID, name string) error {
	d, err := m.Lookup(ctx, userID, name)
	if err != nil {
		return err
	}
	out := m.registrar.DeleteZone(ctx, d.Name)
	if !out.Success {
		m.log.Warn("registrar delete failed", "domain", d.Name, "err", out.Error)
		return &RegistrarError{Message: out.Error}
	}
	if _, err := m.domains.Delete(ctx, d.ID); err != nil {
		return err
	}
	m.log.Info("domain deleted", "domain", d.Name, "domain_id", d.ID, "zone_id", out.ZoneID)
	return nil
}
