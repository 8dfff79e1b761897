package auth

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/auth-gateway/internal/i18n"
	"github.com/yourusername/auth-gateway/internal/response"
)

const requestIDHeader = "X-Request-ID"

// Recovery はパニックを 500 の RestBean に変換するミドルウェアを返します。
func (g *Gateway) Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		g.logger.Error("panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		response.Abort(c, http.StatusInternalServerError,
			response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
	})
}

// RequestLogger はリクエストIDを払い出し、処理結果を slog に記録するミドルウェアを返します。
func (g *Gateway) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if p, ok := PrincipalFrom(c); ok {
			attrs = append(attrs, "user", p.Username)
		}
		g.logger.Info("http.request", attrs...)
	}
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// ログインエンドポイントだけはセッションなしで通します。
func (g *Gateway) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isExempt(c) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		user, _ := session.Get(sessionKeyUser).(string)
		sessionID, _ := session.Get(sessionKeyID).(string)
		if user == "" || sessionID == "" {
			g.reject(c, i18n.AuthRequired)
			return
		}

		ctx := c.Request.Context()
		active, err := g.registry.Active(ctx, sessionID, user)
		if err != nil {
			g.logger.Error("failed to check session", "user", user, "error", err)
			response.Abort(c, http.StatusInternalServerError,
				response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
			return
		}
		if !active {
			// ログアウト済み、または別ユーザーのセッションIDを持つクッキー
			g.clearSession(c, session, "")
			g.reject(c, i18n.AuthRequired)
			return
		}

		now := g.now()
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		if issuedAt.IsZero() || now.Sub(issuedAt) > g.maxLifetime {
			g.clearSession(c, session, sessionID)
			g.reject(c, i18n.SessionExpired)
			return
		}

		if lastActive.IsZero() || now.Sub(lastActive) > g.idleTimeout {
			g.clearSession(c, session, sessionID)
			g.reject(c, i18n.SessionIdle)
			return
		}

		session.Set(sessionKeyLastActive, now.Unix())
		if err := session.Save(); err != nil {
			g.logger.Warn("failed to refresh session activity", "user", user, "error", err)
		}

		userID, _ := session.Get(sessionKeyUserID).(string)
		if userID == "" {
			userID = user
		}
		c.Set(ContextPrincipalKey, &Principal{
			ID:              userID,
			Username:        user,
			Authenticated:   true,
			AuthenticatedAt: issuedAt.UTC(),
			SessionID:       sessionID,
		})
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// ログインエンドポイントと安全なメソッドは検証しません。
func (g *Gateway) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isExempt(c) || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			response.Abort(c, http.StatusForbidden,
				response.Failure(http.StatusForbidden, g.message(c, i18n.CSRFMissing)))
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			response.Abort(c, http.StatusForbidden,
				response.Failure(http.StatusForbidden, g.message(c, i18n.CSRFInvalid)))
			return
		}

		c.Next()
	}
}

func (g *Gateway) reject(c *gin.Context, messageID string) {
	response.Abort(c, http.StatusUnauthorized,
		response.Failure(http.StatusUnauthorized, g.message(c, messageID)))
}

// clearSession はクッキーの中身を消し、sessionID が指定されていれば失効させます。
func (g *Gateway) clearSession(c *gin.Context, session sessions.Session, sessionID string) {
	if sessionID != "" {
		if err := g.registry.Revoke(c.Request.Context(), sessionID); err != nil {
			g.logger.Warn("failed to revoke session", "error", err)
		}
	}
	session.Clear()
	_ = session.Save()
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
