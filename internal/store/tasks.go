package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mohans/nsforge/internal/models"
)

// TaskStore abstracts persistence for task lifecycle records.
// Implementations must be safe for concurrent use.
//
// MarkSucceeded and MarkFailed only apply while the task is still pending and
// report whether they did; this makes the terminal write idempotent.
type TaskStore interface {
	InsertPending(ctx context.Context, t *models.Task) error
	SetJob(ctx context.Context, taskID, jobID, queue string) error
	MarkSucceeded(ctx context.Context, taskID string, result models.TaskResult, finishedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, taskID string, errorMsg string, finishedAt time.Time) (bool, error)
	GetByID(ctx context.Context, taskID string) (*models.Task, error)
	GetForUser(ctx context.Context, taskID, userID string) (*models.Task, error)
	ListPending(ctx context.Context, limit int) ([]models.Task, error)
	Delete(ctx context.Context, taskID string) error
}

// GormTaskStore is the TaskStore backed by gorm (SQLite or Postgres).
type GormTaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

func (s *GormTaskStore) InsertPending(ctx context.Context, t *models.Task) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	t.Status = models.TaskPending
	t.Result = nil
	t.Error = nil
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormTaskStore) SetJob(ctx context.Context, taskID, jobID, queue string) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]any{"job_id": jobID, "queue": queue})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormTaskStore) MarkSucceeded(ctx context.Context, taskID string, result models.TaskResult, finishedAt time.Time) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.TaskPending).
		Select("status", "result", "updated_at").
		Updates(&models.Task{Status: models.TaskSuccess, Result: &result, UpdatedAt: finishedAt.UTC()})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormTaskStore) MarkFailed(ctx context.Context, taskID string, errorMsg string, finishedAt time.Time) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.TaskPending).
		Select("status", "error", "updated_at").
		Updates(&models.Task{Status: models.TaskFailure, Error: &errorMsg, UpdatedAt: finishedAt.UTC()})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormTaskStore) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var t models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).Take(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// GetForUser returns the task only if it belongs to userID.
func (s *GormTaskStore) GetForUser(ctx context.Context, taskID, userID string) (*models.Task, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var t models.Task
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, userID).Take(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListPending returns up to limit pending tasks, oldest first.
func (s *GormTaskStore) ListPending(ctx context.Context, limit int) ([]models.Task, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	var out []models.Task
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TaskPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}

func (s *GormTaskStore) Delete(ctx context.Context, taskID string) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	return translate(s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&models.Task{}).Error)
}
