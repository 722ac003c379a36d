package models

import "time"

// TaskStatus is kept as string for readability in SQL and API payloads.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskSuccess TaskStatus = "success"
	TaskFailure TaskStatus = "failure"
)

// Terminal reports whether no further transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailure
}

// TaskResult is the payload of a successful registration.
type TaskResult struct {
	ZoneID      string   `json:"zone_id"`
	Nameservers []string `json:"nameservers"`
}

// Task is the persisted record of one asynchronous registration.
// Result is set iff Status is success; Error is set iff Status is failure.
type Task struct {
	ID        string      `gorm:"primaryKey;size:36" json:"_id"`
	JobID     string      `gorm:"index" json:"task_id"` // execution layer job id
	Queue     string      `json:"queue"`
	UserID    string      `gorm:"not null;index;size:36" json:"user_id"`
	DomainID  string      `gorm:"size:36" json:"domain_id"`
	Status    TaskStatus  `gorm:"not null;index;default:pending" json:"status"`
	Result    *TaskResult `gorm:"serializer:json" json:"result"`
	Error     *string     `json:"error"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
