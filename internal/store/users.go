package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mohans/nsforge/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type GormUserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, u *models.User) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
