// Package auth はセッションによる認証ゲートウェイを提供します。
//
// ログイン以外のすべてのルートは認証済みセッションを要求します。
// 資格情報の検証は差し替え可能な Authenticator に委譲し、
// 成功・失敗ともに RestBean 形式の JSON を返します。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/auth-gateway/internal/audit"
	"github.com/yourusername/auth-gateway/internal/config"
	"github.com/yourusername/auth-gateway/internal/i18n"
)

const (
	SessionCookieName = "ag_session"

	LoginPath  = "/api/auth/login"
	LogoutPath = "/api/auth/logout"
	MePath     = "/api/auth/me"

	sessionKeyUser       = "auth_user"
	sessionKeyUserID     = "auth_user_id"
	sessionKeyID         = "session_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

// ContextPrincipalKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextPrincipalKey = "auth.principal"

// SuccessHandler はログイン成功時、レスポンスが確定する前に同期的に呼ばれます。
// セッションは保存済みで、ハンドラーはボディを書き込む責任を持ちます。
type SuccessHandler func(c *gin.Context, principal *Principal)

// EventPublisher は認証イベントの送り先です。
type EventPublisher interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Option は Gateway の依存を差し替えます。
type Option func(*Gateway)

// WithRegistry はセッションの失効管理を差し替えます。既定はメモリです。
func WithRegistry(r Registry) Option {
	return func(g *Gateway) { g.registry = r }
}

// WithPublisher は認証イベントの送り先を設定します。
func WithPublisher(p EventPublisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithLogger はロガーを設定します。
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithSuccessHandler はログイン成功時の応答を差し替えます。
func WithSuccessHandler(h SuccessHandler) Option {
	return func(g *Gateway) { g.onSuccess = h }
}

// WithClock は現在時刻の取得方法を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway は認証処理と状態をまとめた構造体です。
type Gateway struct {
	authn     Authenticator
	store     sessions.Store
	registry  Registry
	publisher EventPublisher
	catalog   *i18n.Catalog
	logger    *slog.Logger
	onSuccess SuccessHandler
	now       func() time.Time
	limiter   *loginLimiter

	cookieOptions sessions.Options
	maxLifetime   time.Duration
	idleTimeout   time.Duration
	csrfEnabled   bool
}

// New は認証ゲートウェイを作成します。
func New(cfg *config.Config, authn Authenticator, store sessions.Store, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if authn == nil {
		return nil, errors.New("authenticator is nil")
	}
	if store == nil {
		return nil, errors.New("session store is nil")
	}

	g := &Gateway{
		authn:         authn,
		store:         store,
		catalog:       i18n.NewCatalog(cfg.DefaultLanguage),
		logger:        slog.Default(),
		now:           time.Now,
		cookieOptions: CookieOptions(cfg),
		maxLifetime:   cfg.SessionMaxLifetime,
		idleTimeout:   cfg.SessionIdleTimeout,
		csrfEnabled:   cfg.CSRFEnabled,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = NewMemoryRegistry()
	}
	if g.onSuccess == nil {
		g.onSuccess = g.writeLoginSuccess
	}
	store.Options(g.cookieOptions)
	g.limiter = newLoginLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow, cfg.LoginLockDuration, g.now)

	if !g.csrfEnabled {
		g.logger.Warn("CSRF protection is disabled by configuration")
	}
	return g, nil
}

// CookieOptions はセッションクッキーの属性を返します。
// release モードでは Secure を付けます。
func CookieOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxLifetime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	}
}

// Chain はエンジン全体に適用するフィルターチェーンを順番通りに返します。
//
//  1. パニックを RestBean に変換するリカバリ
//  2. リクエストログ
//  3. セッションの読み込み
//  4. ルート除外と認証チェック
//  5. CSRF 検証（有効時のみ）
func (g *Gateway) Chain() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		g.Recovery(),
		g.RequestLogger(),
		sessions.Sessions(SessionCookieName, g.store),
		g.RequireLogin(),
	}
	if g.csrfEnabled {
		chain = append(chain, g.VerifyCSRF())
	}
	return chain
}

// Register はフィルターチェーンと認証エンドポイントをエンジンに登録します。
// 他のルートはこの後に登録しても同じチェーンで保護されます。
func (g *Gateway) Register(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.Use(g.Chain()...)
	router.NoRoute(g.NotFound)
	router.NoMethod(g.MethodNotAllowed)

	router.POST(LoginPath, g.Login)
	router.POST(LogoutPath, g.Logout)
	router.GET(MePath, g.Me)
}

// isExempt はセッションなしで通してよいリクエストかを返します。
func isExempt(c *gin.Context) bool {
	return c.Request.URL.Path == LoginPath
}

// PrincipalFrom は RequireLogin が設定した利用者を取り出します。
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

func (g *Gateway) message(c *gin.Context, id string) string {
	return g.catalog.Translate(c.GetHeader("Accept-Language"), id)
}

func (g *Gateway) publish(c *gin.Context, typ audit.EventType, username string) {
	if g.publisher == nil {
		return
	}
	event := audit.NewEvent(typ, username, c.ClientIP(), c.Request.UserAgent())
	if err := g.publisher.Publish(c.Request.Context(), event); err != nil {
		g.logger.Warn("failed to publish auth event",
			"type", typ,
			"user", username,
			"error", err,
		)
	}
}
