package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mohans/nsforge/internal/models"
)

// DomainStore is the domain registry. Create relies on the unique index on
// the domain name and returns ErrDuplicate when it is violated.
type DomainStore interface {
	Create(ctx context.Context, d *models.Domain) error
	ExistsByName(ctx context.Context, name string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Domain, error)
	GetByNameForUser(ctx context.Context, name, userID string) (*models.Domain, error)
	ListForUser(ctx context.Context, userID string) ([]models.Domain, error)
	Resolve(ctx context.Context, id, zoneID string, nameservers []string, at time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
	// DeletePending removes the domain only while it is still unresolved.
	DeletePending(ctx context.Context, id string) (bool, error)
	// ListOrphaned returns unresolved domains whose task already failed.
	ListOrphaned(ctx context.Context, limit int) ([]models.Domain, error)
}

type GormDomainStore struct {
	db *gorm.DB
}

func NewDomainStore(db *gorm.DB) *GormDomainStore {
	return &GormDomainStore{db: db}
}

func (s *GormDomainStore) Create(ctx context.Context, d *models.Domain) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	if d.Nameservers == nil {
		d.Nameservers = []string{}
	}
	return translate(s.db.WithContext(ctx).Create(d).Error)
}

func (s *GormDomainStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Domain{}).Where("domain = ?", name).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *GormDomainStore) GetByID(ctx context.Context, id string) (*models.Domain, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var d models.Domain
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *GormDomainStore) GetByNameForUser(ctx context.Context, name, userID string) (*models.Domain, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var d models.Domain
	if err := s.db.WithContext(ctx).Where("domain = ? AND user_id = ?", name, userID).Take(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *GormDomainStore) ListForUser(ctx context.Context, userID string) ([]models.Domain, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var out []models.Domain
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("submitted_at ASC").Find(&out).Error
	return out, translate(err)
}

// Resolve records the registrar's answer on the domain identified by id.
func (s *GormDomainStore) Resolve(ctx context.Context, id, zoneID string, nameservers []string, at time.Time) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&models.Domain{}).
		Where("id = ?", id).
		Select("nameservers", "zone_id", "resolved_at").
		Updates(&models.Domain{Nameservers: nameservers, ZoneID: zoneID, ResolvedAt: &at})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the domain and reports whether a row was removed.
func (s *GormDomainStore) Delete(ctx context.Context, id string) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Domain{})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormDomainStore) DeletePending(ctx context.Context, id string) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	res := s.db.WithContext(ctx).Where("id = ? AND resolved_at IS NULL", id).Delete(&models.Domain{})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormDomainStore) ListOrphaned(ctx context.Context, limit int) ([]models.Domain, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	q := s.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.domain_id = domains.id").
		Where("tasks.status = ? AND domains.resolved_at IS NULL", models.TaskFailure).
		Order("domains.submitted_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Domain
	return out, translate(q.Find(&out).Error)
}
