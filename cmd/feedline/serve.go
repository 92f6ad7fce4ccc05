package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/api"
	"github.com/d60-Lab/feedline/internal/api/handler"
	"github.com/d60-Lab/feedline/internal/realtime"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/cache"
	"github.com/d60-Lab/feedline/pkg/database"
	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and realtime hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	rdb, err := cache.InitRedis(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	repos := repository.NewRepositories(rdb, db)
	if err := repos.Timelines.EnsureEveryone(ctx); err != nil {
		return err
	}

	// 通知：请求路径只入队，worker 发布到 Redis，hub 再推给 SSE 客户端
	dispatcher := service.NewDispatcher(service.NewRedisPublisher(rdb), cfg.Fanout.NotifyQueueSize,
		time.Duration(cfg.Fanout.NotifyTimeoutMsec)*time.Millisecond)
	stopDispatcher := dispatcher.Start(cfg.Fanout.NotifyWorkers)
	runner := service.NewFanoutRunner(cfg.Fanout.Workers, dispatcher)

	feeds := service.NewFeedService(repos)
	auth := service.NewAuthService(repos, feeds, cfg.JWT.Secret, cfg.JWT.TTL)
	hub := realtime.NewHub(rdb, 64)
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("realtime hub stopped", zap.Error(err))
		}
	}()

	h := handler.NewHandler(handler.Services{
		Auth:          auth,
		Feeds:         feeds,
		Relationships: service.NewRelationshipService(repos),
		Groups:        service.NewGroupService(repos),
		Posts:         service.NewPostService(repos, runner),
		Comments:      service.NewCommentService(repos, runner),
		Timelines:     service.NewTimelineService(repos, cfg.Timeline),
	}, hub)
	router := api.NewRouter(cfg, api.RouterDeps{
		Handler: h,
		Auth:    auth,
		Health: map[string]handler.Pinger{
			"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			"database": handler.PingFunc(func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("dispatcher shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return nil
}
