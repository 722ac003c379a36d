package asyncx

import "time"

// State represents the live state of a job as reported by the execution layer.
// Kept as string for readability in logs and API payloads.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	// StateUnknown is reported when the job is no longer known to the queue,
	// typically because its retention period has expired.
	StateUnknown State = "unknown"
)

// JobHandle identifies a dispatched job.
type JobHandle struct {
	ID    string // asynq task ID
	Queue string // queue name
}

// JobState is a snapshot of a job's live state.
type JobState struct {
	State       State
	Result      []byte // handler result, set when State is StateSucceeded
	Err         string // last error message, set when State is StateFailed
	CompletedAt *time.Time
}

// Terminal reports whether the job reached succeeded or failed.
func (s JobState) Terminal() bool {
	return s.State == StateSucceeded || s.State == StateFailed
}
