package models

import "time"

type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"_id"`
	Email          string    `gorm:"not null;uniqueIndex" json:"email"`
	HashedPassword string    `gorm:"not null" json:"-"`
	FullName       string    `json:"full_name,omitempty"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
