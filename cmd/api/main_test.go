package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/auth-gateway/internal/auth"
	"github.com/yourusername/auth-gateway/internal/config"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	cfg := &config.Config{
		AppUsername:        "admin",
		AppPasswordHash:    string(hash),
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		GinMode:            gin.TestMode,
		CORSAllowedOrigins: "http://localhost:5173",
		SessionMaxLifetime: time.Hour,
		SessionIdleTimeout: 30 * time.Minute,
		LoginMaxAttempts:   5,
		LoginWindow:        15 * time.Minute,
		LoginLockDuration:  10 * time.Minute,
		CSRFEnabled:        true,
		DefaultLanguage:    "zh",
	}

	router, cleanup, err := setupRouter(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("setupRouter returned error: %v", err)
	}
	t.Cleanup(cleanup)
	return router
}

func TestSetupRouterLogin(t *testing.T) {
	router := testRouter(t)

	form := url.Values{"username": {"admin"}, "password": {"s3cret"}}
	req := httptest.NewRequest(http.MethodPost, auth.LoginPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != `{"code":200,"msg":"登录成功","data":null}` {
		t.Fatalf("unexpected body: %s", body)
	}

	setCookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, auth.SessionCookieName+"=") || !strings.Contains(setCookie, "HttpOnly") {
		t.Fatalf("unexpected Set-Cookie: %s", setCookie)
	}
}

func TestSetupRouterProtectsEverythingElse(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSetupRouterCORSPreflightBypassesAuth(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodOptions, auth.LogoutPath, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}
