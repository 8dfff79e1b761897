package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/auth-gateway/internal/audit"
	"github.com/yourusername/auth-gateway/internal/i18n"
	"github.com/yourusername/auth-gateway/internal/response"
)

// loginRequest はフォーム（application/x-www-form-urlencoded）と JSON の両方を受け付けます。
type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// Login は /api/auth/login のハンドラーです。
func (g *Gateway) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Write(c, http.StatusBadRequest,
			response.Failure(http.StatusBadRequest, g.message(c, i18n.InvalidInput)))
		return
	}

	ip := c.ClientIP()
	if retryAfter := g.limiter.retryAfter(ip); retryAfter > 0 {
		// Retry-After は秒数で返す（切り上げ）
		c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(retryAfter.Seconds())), 10))
		response.Write(c, http.StatusTooManyRequests,
			response.Failure(http.StatusTooManyRequests, g.message(c, i18n.TooManyAttempts)))
		return
	}

	principal, err := g.authn.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		g.handleLoginFailure(c, ip, req.Username, err)
		return
	}

	g.limiter.reset(ip)

	if err := g.establishSession(c, principal); err != nil {
		g.logger.Error("failed to establish session", "user", principal.Username, "error", err)
		response.Write(c, http.StatusInternalServerError,
			response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
		return
	}

	c.Set(ContextPrincipalKey, principal)
	g.publish(c, audit.EventLoginSucceeded, principal.Username)
	g.logger.Info("login succeeded", "user", principal.Username, "ip", ip)

	g.onSuccess(c, principal)
}

func (g *Gateway) handleLoginFailure(c *gin.Context, ip, username string, err error) {
	switch {
	case errors.Is(err, ErrBadCredentials):
		remaining, locked := g.limiter.recordFailure(ip)
		g.publish(c, audit.EventLoginFailed, username)
		g.logger.Info("login failed", "user", username, "ip", ip)
		if locked {
			g.publish(c, audit.EventLoginLocked, username)
			g.logger.Warn("login locked", "user", username, "ip", ip)
		}

		msg := g.message(c, i18n.BadCredentials)
		if !g.limiter.enabled() {
			response.Write(c, http.StatusUnauthorized, response.Failure(http.StatusUnauthorized, msg))
			return
		}
		response.Write(c, http.StatusUnauthorized,
			response.FailureWithData(http.StatusUnauthorized, msg, gin.H{"remainingAttempts": remaining}))
	case errors.Is(err, ErrNoUsers):
		g.logger.Error("login rejected: no users configured")
		response.Write(c, http.StatusInternalServerError,
			response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerMisconfigured)))
	default:
		g.logger.Error("authenticator failed", "user", username, "error", err)
		response.Write(c, http.StatusInternalServerError,
			response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
	}
}

// establishSession は既存セッションを破棄し、新しいセッションIDで保存します。
func (g *Gateway) establishSession(c *gin.Context, principal *Principal) error {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	// ログイン前のセッションIDは引き継がない
	if old, ok := session.Get(sessionKeyID).(string); ok && old != "" {
		if err := g.registry.Revoke(ctx, old); err != nil {
			return err
		}
	}
	session.Clear()

	sessionID := uuid.NewString()
	now := g.now()
	session.Set(sessionKeyUser, principal.Username)
	session.Set(sessionKeyUserID, principal.ID)
	session.Set(sessionKeyID, sessionID)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())

	var token string
	if g.csrfEnabled {
		var err error
		if token, err = generateToken(); err != nil {
			return err
		}
		session.Set(sessionKeyCSRF, token)
	}

	if err := g.registry.Register(ctx, sessionID, principal.Username, g.maxLifetime); err != nil {
		return err
	}
	if err := session.Save(); err != nil {
		_ = g.registry.Revoke(ctx, sessionID)
		return err
	}

	principal.SessionID = sessionID
	if token != "" {
		c.Header(csrfHeader, token)
	}
	return nil
}

// writeLoginSuccess は既定の成功ハンドラーです。
func (g *Gateway) writeLoginSuccess(c *gin.Context, principal *Principal) {
	response.Write(c, http.StatusOK, response.Success(g.message(c, i18n.LoginSuccess)))
}

// Logout は /api/auth/logout のハンドラーです。
func (g *Gateway) Logout(c *gin.Context) {
	session := sessions.Default(c)
	username, _ := session.Get(sessionKeyUser).(string)

	if sessionID, ok := session.Get(sessionKeyID).(string); ok && sessionID != "" {
		if err := g.registry.Revoke(c.Request.Context(), sessionID); err != nil {
			g.logger.Error("failed to revoke session", "user", username, "error", err)
			response.Write(c, http.StatusInternalServerError,
				response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
			return
		}
	}

	session.Clear()
	opts := g.cookieOptions
	opts.MaxAge = -1
	session.Options(opts)
	if err := session.Save(); err != nil {
		g.logger.Error("failed to clear session", "user", username, "error", err)
		response.Write(c, http.StatusInternalServerError,
			response.Failure(http.StatusInternalServerError, g.message(c, i18n.ServerError)))
		return
	}

	g.publish(c, audit.EventLogout, username)
	g.logger.Info("logout", "user", username)
	response.Write(c, http.StatusOK, response.Success(g.message(c, i18n.LogoutSuccess)))
}

// Me はログイン中のユーザー情報を返します。
func (g *Gateway) Me(c *gin.Context) {
	principal, ok := PrincipalFrom(c)
	if !ok {
		response.Write(c, http.StatusUnauthorized,
			response.Failure(http.StatusUnauthorized, g.message(c, i18n.AuthRequired)))
		return
	}
	response.Write(c, http.StatusOK, response.SuccessWithData(g.message(c, i18n.CurrentUser), principal))
}

// NotFound は存在しないルートに RestBean で応答します。
func (g *Gateway) NotFound(c *gin.Context) {
	response.Write(c, http.StatusNotFound,
		response.Failure(http.StatusNotFound, g.message(c, i18n.RouteNotFound)))
}

// MethodNotAllowed は許可されていないメソッドに RestBean で応答します。
func (g *Gateway) MethodNotAllowed(c *gin.Context) {
	response.Write(c, http.StatusMethodNotAllowed,
		response.Failure(http.StatusMethodNotAllowed, g.message(c, i18n.RouteMethodNotAllowed)))
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
