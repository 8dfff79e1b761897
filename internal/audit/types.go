// Package audit は認証イベント（ログイン成功・失敗、ログアウト）の記録を提供します。
// イベントは Asynq のキューを経由して非同期に Redis へ保存されます。
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType は認証イベントの種類を表します。
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLoginLocked    EventType = "login_locked"
	EventLogout         EventType = "logout"
)

// Event は1件の認証イベントです。
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Username   string    `json:"username"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent は ID と発生時刻を埋めたイベントを作成します。
func NewEvent(typ EventType, username, clientIP, userAgent string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Username:   username,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
		OccurredAt: time.Now().UTC(),
	}
}
