// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minSessionSecretBytes は release モードで要求するセッション署名鍵の最小長です。
const minSessionSecretBytes = 32

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定
	AppUsername     string            // ログイン用ユーザー名
	AppPasswordHash string            // bcryptでハッシュ化されたパスワード
	ExtraUsers      map[string]string // APP_USERS で追加するユーザー（ユーザー名 → bcryptハッシュ）
	SessionSecret   string            // セッション署名用の秘密鍵

	// サーバー設定
	Port            string        // APIサーバーのポート番号
	GinMode         string        // Ginの実行モード (debug, release, test)
	ShutdownTimeout time.Duration // グレースフルシャットダウンの待ち時間

	// ログ設定
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// セッション設定
	SessionMaxLifetime time.Duration // ログインからの絶対的な有効期限
	SessionIdleTimeout time.Duration // 無操作でセッションを失効させるまでの時間
	SessionRedisURL    string        // 失効管理に使う Redis（空ならメモリ）

	// ログイン試行制限
	LoginMaxAttempts  int           // 0 で無効
	LoginWindow       time.Duration // 失敗回数を数える期間
	LoginLockDuration time.Duration // ロック時間

	// CSRF 保護（既定で有効）
	CSRFEnabled bool

	// メッセージの既定言語
	DefaultLanguage string

	// 監査ログ（Asynq）
	AuditRedisURL  string        // 空なら監査ログを無効化
	AuditMaxEvents int64         // ユーザーごとに保持するイベント数
	AuditRetention time.Duration // イベントの保持期間
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	extraUsers, err := parseUsers(getEnv("APP_USERS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		// 認証設定
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		ExtraUsers:      extraUsers,
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		// サーバー設定
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		// ログ設定
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// セッション設定
		SessionMaxLifetime: getEnvAsDuration("SESSION_MAX_LIFETIME", 12*time.Hour),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionRedisURL:    getEnv("SESSION_REDIS_URL", ""),

		// ログイン試行制限
		LoginMaxAttempts:  getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:       getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
		LoginLockDuration: getEnvAsDuration("LOGIN_LOCK_DURATION", 10*time.Minute),

		CSRFEnabled:     getEnvAsBool("CSRF_ENABLED", true),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "zh"),

		// 監査ログ
		AuditRedisURL:  getEnv("AUDIT_REDIS_URL", ""),
		AuditMaxEvents: getEnvAsInt64("AUDIT_MAX_EVENTS", 100),
		AuditRetention: getEnvAsDuration("AUDIT_RETENTION", 7*24*time.Hour),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.SessionMaxLifetime <= 0 {
		return fmt.Errorf("SESSION_MAX_LIFETIME must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must not be negative")
	}
	// 空の鍵ではクッキーの署名が検証できない
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	// ローカル開発では認証設定は任意
	if c.GinMode == "release" {
		if c.AppUsername == "" && len(c.ExtraUsers) == 0 {
			return fmt.Errorf("APP_USERNAME or APP_USERS is required in release mode")
		}
		if c.AppUsername != "" && c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
		if len(c.SessionSecret) < minSessionSecretBytes {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes in release mode", minSessionSecretBytes)
		}
	}

	return nil
}

// Users は APP_USERNAME と APP_USERS を合わせたユーザー表を返します。
func (c *Config) Users() map[string]string {
	users := make(map[string]string, len(c.ExtraUsers)+1)
	for name, hash := range c.ExtraUsers {
		users[name] = hash
	}
	if c.AppUsername != "" && c.AppPasswordHash != "" {
		users[c.AppUsername] = c.AppPasswordHash
	}
	return users
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// parseUsers は "user:hash,user2:hash2" 形式を解析します。
// bcrypt ハッシュは ':' を含まないので最初の ':' で分割します。
func parseUsers(raw string) (map[string]string, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("APP_USERS entry %q must be user:bcrypt-hash", entry)
		}
		users[name] = hash
	}
	return users, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は "30m" や "12h" 形式の環境変数を取得します。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
