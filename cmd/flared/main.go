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

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/flare-sync/config"
	"github.com/d60-Lab/flare-sync/internal/api"
	"github.com/d60-Lab/flare-sync/internal/api/handler"
	"github.com/d60-Lab/flare-sync/internal/datasource"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/internal/service"
	"github.com/d60-Lab/flare-sync/pkg/database"
	"github.com/d60-Lab/flare-sync/pkg/logger"
	"github.com/d60-Lab/flare-sync/pkg/secret"
	"github.com/d60-Lab/flare-sync/pkg/tracing"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flared",
		Short: "Timeline sync daemon for multi-backend microblogging accounts",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.InitDB(cfg)
			if err != nil {
				return err
			}
			return database.Migrate(db)
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.Trace.Endpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(ctx) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// 缓存变更通知：配了 redis 走跨进程广播，否则进程内 channel hub。
	var hub notify.Hub
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		hub = notify.NewRedisHub(client)
	} else {
		hub = notify.NewChannelHub()
	}
	defer hub.Close()

	box, err := secret.NewBox(cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("init secret box: %w", err)
	}

	store := repository.NewCacheStore(db, hub)
	relations := repository.NewRelationRepository(db)
	accounts := repository.NewAccountRepository(db)

	rollbacks := datasource.NewRollbackQueue(relations, 1024)
	stopRollbacks := rollbacks.Start(2)
	defer func() { _ = stopRollbacks(ctx) }()
	datasource.SetRollbackQueue(rollbacks)

	accountSvc := service.NewAccountService(accounts, store, relations, hub, box, cfg.Sync.PageSize)
	timelineSvc := service.NewTimelineService(accountSvc)
	defer timelineSvc.CloseAll()

	h := handler.New(accountSvc, timelineSvc, store)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(cfg, h),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
