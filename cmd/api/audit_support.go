package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/auth-gateway/internal/audit"
	"github.com/yourusername/auth-gateway/internal/auth"
	"github.com/yourusername/auth-gateway/internal/config"
	"github.com/yourusername/auth-gateway/internal/i18n"
	"github.com/yourusername/auth-gateway/internal/response"
)

type auditService struct {
	manager *audit.Manager
	store   *audit.Store
	rdb     *redis.Client
	logger  *slog.Logger
}

func (s *auditService) close() {
	if err := s.manager.Shutdown(context.Background()); err != nil {
		s.logger.Warn("failed to shut down audit manager", "error", err)
	}
	_ = s.rdb.Close()
}

// setupAudit は AUDIT_REDIS_URL が設定されている場合に監査ログを構成します。
func setupAudit(cfg *config.Config, log *slog.Logger) (*auditService, error) {
	if cfg.AuditRedisURL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.AuditRedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	store := audit.NewStore(rdb, cfg.AuditMaxEvents, cfg.AuditRetention)

	manager, err := audit.NewManager(cfg.AuditRedisURL, store, log)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &auditService{
		manager: manager,
		store:   store,
		rdb:     rdb,
		logger:  log,
	}, nil
}

type eventLister interface {
	Recent(ctx context.Context, username string, limit int64) ([]audit.Event, error)
}

// auditEventsHandler はログイン中ユーザーの最近の認証イベントを返します。
func auditEventsHandler(store eventLister, catalog *i18n.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := catalog.Match(c.GetHeader("Accept-Language"))
		principal, ok := auth.PrincipalFrom(c)
		if !ok {
			response.Write(c, http.StatusUnauthorized,
				response.Failure(http.StatusUnauthorized, catalog.Message(lang, i18n.AuthRequired)))
			return
		}

		var limit int64 = 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				response.Write(c, http.StatusBadRequest,
					response.Failure(http.StatusBadRequest, catalog.Message(lang, i18n.EventsInvalidLimit)))
				return
			}
			limit = parsed
		}

		events, err := store.Recent(c.Request.Context(), principal.Username, limit)
		if err != nil {
			response.Write(c, http.StatusInternalServerError,
				response.Failure(http.StatusInternalServerError, catalog.Message(lang, i18n.EventsLoadFailed)))
			return
		}
		response.Write(c, http.StatusOK, response.SuccessWithData(catalog.Message(lang, i18n.EventsLoaded), events))
	}
}
