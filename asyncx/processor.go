package asyncx

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Processor manages background workers and logs lifecycle events.
type Processor struct {
	server *asynq.Server
	log    *slog.Logger
}

type ProcessorConfig struct {
	Concurrency int
	Queues      map[string]int
	// ShutdownTimeout is how long Shutdown waits for active jobs.
	ShutdownTimeout time.Duration
}

func NewProcessor(rdb redis.UniversalClient, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	con := cfg.Concurrency
	if con <= 0 {
		con = 10
	}
	qs := cfg.Queues
	if qs == nil {
		qs = map[string]int{"default": 1}
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := asynq.NewServerFromRedisClient(rdb, asynq.Config{
		Concurrency:     con,
		Queues:          qs,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          NewLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("job failed", "job_id", id, "type", t.Type(), "retried", retried, "max_retry", maxRetry, "err", err)
		}),
	})
	return &Processor{server: server, log: logger}
}

// Middleware to log started/finished
func (p *Processor) lifecycleMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		start := time.Now()
		p.log.Debug("job started", "job_id", id, "type", t.Type())
		err := next.ProcessTask(ctx, t)
		if err == nil {
			p.log.Info("job completed", "job_id", id, "type", t.Type(), "took", time.Since(start))
		}
		return err
	})
}

// Start runs the processor in the background with provided mux/handler
// registrations. The caller should build a mux and pass it in; we wrap with
// middleware.
func (p *Processor) Start(mux *asynq.ServeMux) error {
	if mux == nil {
		mux = asynq.NewServeMux()
	}
	return p.server.Start(p.lifecycleMiddleware(mux))
}

// Run is like Start but blocks until the process receives a signal to exit.
func (p *Processor) Run(mux *asynq.ServeMux) error {
	if mux == nil {
		mux = asynq.NewServeMux()
	}
	return p.server.Run(p.lifecycleMiddleware(mux))
}

func (p *Processor) Shutdown() { p.server.Shutdown() }
