// Package logger は log/slog を使った構造化ログの初期化を提供します。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New は level と format から slog.Logger を作成します。
// format が "json" 以外の場合はテキスト形式で出力します。
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init は標準出力向けのロガーを作成し、slog のデフォルトに設定します。
func Init(level, format string) *slog.Logger {
	l := New(os.Stdout, level, format)
	slog.SetDefault(l)
	return l
}

// ParseLevel は文字列のログレベルを slog.Level に変換します。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
