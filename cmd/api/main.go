// Package main は認証ゲートウェイのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/auth-gateway/internal/auth"
	"github.com/yourusername/auth-gateway/internal/config"
	"github.com/yourusername/auth-gateway/internal/i18n"
	"github.com/yourusername/auth-gateway/internal/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	router, cleanup, err := setupRouter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", "addr", srv.Addr, "mode", cfg.GinMode, "csrf", cfg.CSRFEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// setupRouter はミドルウェアと認証ゲートウェイを配線したエンジンを返します。
// cleanup はサーバー停止後に呼び出してください。
func setupRouter(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gin.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// セッションストア（クッキー属性は auth.New が設定する）
	store := cookie.NewStore([]byte(cfg.SessionSecret))

	opts := []auth.Option{auth.WithLogger(log)}

	if cfg.SessionRedisURL != "" {
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid SESSION_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect session redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts, auth.WithRegistry(auth.NewRedisRegistry(rdb)))
	}

	auditSvc, err := setupAudit(cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if auditSvc != nil {
		auditSvc.manager.StartWorkers()
		closers = append(closers, auditSvc.close)
		opts = append(opts, auth.WithPublisher(auditSvc.manager))
	}

	gateway, err := auth.New(cfg, auth.NewStaticAuthenticator(cfg.Users()), store, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	router := gin.New()

	// CORS はプリフライトを認証より先に処理させる
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Accept-Language",
			"X-CSRF-Token",
			"X-Request-ID",
		}
		// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
		corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "X-Request-ID"}
		router.Use(cors.New(corsConfig))
	}

	gateway.Register(router)

	if auditSvc != nil {
		router.GET("/api/auth/events", auditEventsHandler(auditSvc.store, i18n.NewCatalog(cfg.DefaultLanguage)))
	}

	return router, cleanup, nil
}
