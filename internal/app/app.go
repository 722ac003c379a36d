// Package app wires the stores, the execution layer and the registrar shared
// by the API server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mohans/nsforge/asyncx"
	"github.com/mohans/nsforge/internal/config"
	"github.com/mohans/nsforge/internal/database"
	"github.com/mohans/nsforge/internal/lifecycle"
	"github.com/mohans/nsforge/internal/registrar"
	"github.com/mohans/nsforge/internal/store"
)

type App struct {
	Config *config.Config
	Log    *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client

	Users   *store.GormUserStore
	Domains *store.GormDomainStore
	Tasks   *store.GormTaskStore

	Jobs    *asyncx.Client
	Manager *lifecycle.Manager
	Status  *lifecycle.StatusService
}

// New opens the database and redis and builds the lifecycle services. The
// caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = database.Close(db)
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	reg, err := registrar.NewCloudflare(registrar.CloudflareConfig{
		APIToken:  cfg.CloudflareAPIToken,
		APIKey:    cfg.CloudflareAPIKey,
		Email:     cfg.CloudflareEmail,
		AccountID: cfg.CloudflareAccountID,
		BaseURL:   cfg.CloudflareBaseURL,
		RateLimit: cfg.CloudflareRateLimit,
		Timeout:   cfg.CloudflareTimeout,
	}, log)
	if err != nil {
		_ = rdb.Close()
		_ = database.Close(db)
		return nil, fmt.Errorf("cloudflare client: %w", err)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Redis:   rdb,
		Users:   store.NewUserStore(db),
		Domains: store.NewDomainStore(db),
		Tasks:   store.NewTaskStore(db),
		Jobs: asyncx.NewClient(rdb, asyncx.ClientOptions{
			Queue:     cfg.Queue,
			MaxRetry:  cfg.JobMaxRetry,
			Retention: cfg.JobRetention,
			Timeout:   cfg.JobTimeout,
		}),
	}
	a.Manager = lifecycle.NewManager(a.Domains, a.Tasks, a.Jobs, reg, log)
	a.Status = lifecycle.NewStatusService(a.Tasks, a.Domains, a.Jobs, log)
	return a, nil
}

// Ping checks both backing services.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	return errors.Join(a.Redis.Close(), database.Close(a.DB))
}
