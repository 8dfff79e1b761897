package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry はサーバー側で有効なセッションIDと所有者を管理します。
// クッキーを再送されてもログアウト済みのセッションを拒否するために使います。
type Registry interface {
	Register(ctx context.Context, sessionID, username string, ttl time.Duration) error
	// Active はセッションが有効で、かつ username に発行されたものかを返します。
	Active(ctx context.Context, sessionID, username string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

type registeredSession struct {
	username string
	expires  time.Time
}

// MemoryRegistry はプロセス内で完結する Registry です。
type MemoryRegistry struct {
	lock     sync.Mutex
	sessions map[string]registeredSession
	now      func() time.Time
}

// NewMemoryRegistry は MemoryRegistry を作成します。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]registeredSession),
		now:      time.Now,
	}
}

func (r *MemoryRegistry) Register(ctx context.Context, sessionID, username string, ttl time.Duration) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := r.now()
	for id, s := range r.sessions {
		if now.After(s.expires) {
			delete(r.sessions, id)
		}
	}
	r.sessions[sessionID] = registeredSession{username: username, expires: now.Add(ttl)}
	return nil
}

func (r *MemoryRegistry) Active(ctx context.Context, sessionID, username string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if r.now().After(s.expires) {
		delete(r.sessions, sessionID)
		return false, nil
	}
	return s.username == username, nil
}

func (r *MemoryRegistry) Revoke(ctx context.Context, sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

const sessionKeyPrefix = "session:"

// RedisRegistry はセッションIDをキー、ユーザー名を値として Redis に保存します。
// 複数インスタンスでログアウトを共有したい場合に使います。
type RedisRegistry struct {
	rdb *redis.Client
}

// NewRedisRegistry は RedisRegistry を作成します。
func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) Register(ctx context.Context, sessionID, username string, ttl time.Duration) error {
	return r.rdb.Set(ctx, sessionKeyPrefix+sessionID, username, ttl).Err()
}

func (r *RedisRegistry) Active(ctx context.Context, sessionID, username string) (bool, error) {
	owner, err := r.rdb.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == username, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
