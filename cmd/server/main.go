package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/venue-directory/internal/app"
	"github.com/iliyamo/venue-directory/internal/config"
	"github.com/iliyamo/venue-directory/internal/database"
	"github.com/iliyamo/venue-directory/internal/handler"
	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/middleware"
	"github.com/iliyamo/venue-directory/internal/queue"
	"github.com/iliyamo/venue-directory/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if cfg.JWTSecret == "" {
		logging.Fatal().Msg("JWT_SECRET is required by the admin API")
	}
	if cfg.CronSecret == "" {
		logging.Warn().Msg("CRON_SECRET not set; sync trigger is unauthenticated")
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	p, err := app.Build(cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("build pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartRunConsumer(ctx, cfg.RabbitURL, cfg.SyncLogPath); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("run consumer stopped")
			}
		}()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logging.Warn().Str("addr", cfg.Redis.Address()).Msg("redis unavailable; rate limit and cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, db)
	router.RegisterSync(e, &handler.SyncHandler{Runner: p.Orchestrator, Timeout: cfg.Sync.RunTimeout}, cfg.CronSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(p.Runs, p.Auditor, p.Events), cfg.JWTSecret)
	router.RegisterPublic(e, &handler.PublicHandler{Events: p.Events, Movies: p.Movies},
		middleware.NewTokenBucket(cfg.RateLimit, rdb),
		middleware.NewRedisCache(cfg.Cache, rdb),
	)

	addr := ":" + cfg.Port
	go func() {
		logging.Info().Str("addr", addr).Str("env", cfg.Env).Int("sources", len(cfg.Sync.Sources)).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}
