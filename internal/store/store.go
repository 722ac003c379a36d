// Package store persists users, domains and task lifecycle records.
// All updates are point updates keyed by record id.
package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mohans/nsforge/internal/database"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case database.IsUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}
