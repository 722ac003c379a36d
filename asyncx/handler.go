package asyncx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// HandleJSON adapts fn into an asynq handler. The job payload is decoded into
// P and a non-nil result is JSON encoded as the job result.
func HandleJSON[P any](fn func(ctx context.Context, payload P) (any, error)) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var p P
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return Permanent(fmt.Errorf("decode %s payload: %w", t.Type(), err))
		}
		res, err := fn(ctx, p)
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		if w := t.ResultWriter(); w != nil {
			if _, err := w.Write(b); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		return nil
	})
}

// Permanent marks err as not retryable. Unlike wrapping asynq.SkipRetry with
// fmt.Errorf, the message recorded as the job's last error is err's own.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type permanentError struct{ err error }

func (e permanentError) Error() string   { return e.err.Error() }
func (e permanentError) Unwrap() []error { return []error{e.err, asynq.SkipRetry} }
