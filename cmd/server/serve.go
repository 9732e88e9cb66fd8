package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"attendance-monitor/internal/cache"
	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/config"
	"attendance-monitor/internal/database"
	"attendance-monitor/internal/handlers"
	"attendance-monitor/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "attendance-monitor")
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()

		db, err := database.OpenAndMigrate(database.Config{Path: cfg.Database.Path, Debug: cfg.Database.Debug}, log)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		return nil
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "attendance-monitor")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.UploadDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.Database.Path, Debug: cfg.Database.Debug}, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var kv cache.KV = cache.Nop{}
	if cfg.Redis.IsConfigured() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		kv = cache.NewRedisKV(rdb)
		log.Info("Dashboard stats cache enabled", zap.String("redis_addr", cfg.Redis.Addr))
	}

	svc := handlers.NewServices(handlers.ServicesConfig{
		DB:                 db,
		Clock:              clock.Real(),
		Cache:              kv,
		UploadDir:          cfg.UploadDir,
		PresenceStaleAfter: cfg.PresenceStaleAfter,
		StatsCacheTTL:      cfg.StatsCacheTTL,
		SiteCheckWorkers:   cfg.SiteCheck.Workers,
		SiteCheckTimeout:   cfg.SiteCheck.Timeout,
		QueryTimeout:       cfg.Database.QueryTimeout,
		Logger:             log,
	})
	h := handlers.NewMonitorHandler(svc, log.Named("api"), cfg.Database.QueryTimeout)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr: cfg.ServerPort,
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			UploadDir:      cfg.UploadDir,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         log.Named("http"),
		}),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return runUntilSignal(server, log)
}

func runUntilSignal(server *http.Server, log *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
