package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohans/nsforge/internal/app"
	"github.com/mohans/nsforge/internal/auth"
	"github.com/mohans/nsforge/internal/config"
	"github.com/mohans/nsforge/internal/handlers"
	"github.com/mohans/nsforge/internal/logging"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Stores, redis and registrar
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// 3. API Server
	e := echo.New()
	e.HideBanner = true
	handlers.UseMiddleware(e, handlers.MiddlewareConfig{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	authSvc := auth.NewService(a.Users, cfg.SecretKey, cfg.TokenTTL)
	handlers.RegisterRoutes(e, a.Manager, a.Status, authSvc, a.Ping)

	go func() {
		logger.Info("api listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "err", err)
	}
}
