package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "audit:user:"
)

// Store は認証イベントをユーザーごとの Redis リストに保存します。
// 新しいイベントが先頭に来ます。
type Store struct {
	rdb       *redis.Client
	maxEvents int64
	ttl       time.Duration
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, maxEvents int64, ttl time.Duration) *Store {
	if maxEvents <= 0 {
		maxEvents = 100
	}
	return &Store{
		rdb:       rdb,
		maxEvents: maxEvents,
		ttl:       ttl,
	}
}

// Append はイベントを追加し、保持件数を超えた古いイベントを削除します。
func (s *Store) Append(ctx context.Context, event Event) error {
	if event.Username == "" {
		return fmt.Errorf("event.Username is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := eventKey(event.Username)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, s.maxEvents-1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Recent は新しい順に最大 limit 件のイベントを返します。
func (s *Store) Recent(ctx context.Context, username string, limit int64) ([]Event, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if limit <= 0 || limit > s.maxEvents {
		limit = s.maxEvents
	}
	items, err := s.rdb.LRange(ctx, eventKey(username), 0, limit-1).Result()
	if err != nil {
		if err == redis.Nil {
			return []Event{}, nil
		}
		return nil, err
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func eventKey(username string) string {
	return eventKeyPrefix + username
}
