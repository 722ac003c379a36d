package lifecycle

import "errors"

var (
	// ErrConflict is returned when the domain name is already claimed.
	ErrConflict = errors.New("This domain is already registered")
	// ErrNotFound covers missing records and records owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrDispatch is returned when the execution layer rejected a job.
	ErrDispatch = errors.New("background execution layer unavailable")
)

// RegistrarError carries the provider's message for a rejected or
// unreachable registrar call.
type RegistrarError struct {
	Message string
}

func (e *RegistrarError) Error() string { return e.Message }
