package asyncx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client wraps asynq.Client for dispatching and asynq.Inspector for polling.
// The redis connection is shared and owned by the caller.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
	retention time.Duration
	timeout   time.Duration
}

type ClientOptions struct {
	Queue string
	// MaxRetry is the number of times a failed job is retried by the
	// execution layer. Zero disables retries.
	MaxRetry int
	// Retention keeps completed jobs around so Poll can read their result.
	Retention time.Duration
	// Timeout bounds a single handler invocation. Zero leaves asynq's default.
	Timeout time.Duration
}

func NewClient(rdb redis.UniversalClient, opts ClientOptions) *Client {
	q := opts.Queue
	if q == "" {
		q = "default"
	}
	ret := opts.Retention
	if ret <= 0 {
		ret = 24 * time.Hour
	}
	return &Client{
		client:    asynq.NewClientFromRedisClient(rdb),
		inspector: asynq.NewInspectorFromRedisClient(rdb),
		queue:     q,
		maxRetry:  opts.MaxRetry,
		retention: ret,
		timeout:   opts.Timeout,
	}
}

// Queue returns the queue jobs are dispatched to.
func (c *Client) Queue() string { return c.queue }

// Submit enqueues a job with type and arbitrary payload (will be JSON encoded)
// and returns its handle immediately.
func (c *Client) Submit(ctx context.Context, taskType string, payload any) (JobHandle, error) {
	if c.client == nil {
		return JobHandle{}, fmt.Errorf("nil asynq client")
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return JobHandle{}, err
	}
	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Retention(c.retention),
	}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, payloadBytes), opts...)
	if err != nil {
		return JobHandle{}, err
	}
	return JobHandle{ID: info.ID, Queue: info.Queue}, nil
}

// Poll reports the live state of a previously submitted job.
func (c *Client) Poll(ctx context.Context, h JobHandle) (JobState, error) {
	if err := ctx.Err(); err != nil {
		return JobState{}, err
	}
	q := h.Queue
	if q == "" {
		q = c.queue
	}
	info, err := c.inspector.GetTaskInfo(q, h.ID)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return JobState{State: StateUnknown}, nil
	case err != nil:
		return JobState{}, err
	}
	return stateOf(info), nil
}

func stateOf(info *asynq.TaskInfo) JobState {
	switch info.State {
	case asynq.TaskStateCompleted:
		st := JobState{State: StateSucceeded, Result: info.Result}
		if !info.CompletedAt.IsZero() {
			t := info.CompletedAt
			st.CompletedAt = &t
		}
		return st
	case asynq.TaskStateArchived:
		st := JobState{State: StateFailed, Err: info.LastErr}
		if !info.LastFailedAt.IsZero() {
			t := info.LastFailedAt
			st.CompletedAt = &t
		}
		return st
	default:
		// pending, active, scheduled, retry and aggregating are all still in flight.
		return JobState{State: StateRunning}
	}
}
