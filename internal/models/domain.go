package models

import "time"

// Domain is a user's claim on a DNS zone. A domain with no nameservers and a
// nil ResolvedAt is still pending registration.
type Domain struct {
	ID          string     `gorm:"primaryKey;size:36" json:"_id"`
	UserID      string     `gorm:"not null;index;size:36" json:"user_id"`
	Name        string     `gorm:"column:domain;not null;uniqueIndex" json:"domain"`
	Nameservers []string   `gorm:"serializer:json" json:"nameservers"`
	ZoneID      string     `json:"zone_id,omitempty"`
	ResolvedAt  *time.Time `json:"created_at"`
	SubmittedAt time.Time  `gorm:"autoCreateTime" json:"submitted_at"`
}

// Pending reports whether the registrar has not assigned nameservers yet.
func (d *Domain) Pending() bool {
	return len(d.Nameservers) == 0 && d.ResolvedAt == nil
}
