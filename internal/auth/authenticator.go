package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrBadCredentials はユーザー名またはパスワードが一致しないことを表します。
	ErrBadCredentials = errors.New("auth: bad credentials")
	// ErrNoUsers はログイン可能なユーザーが1人も設定されていないことを表します。
	ErrNoUsers = errors.New("auth: no users configured")
)

// Principal は認証済みの利用者です。
type Principal struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Authenticated   bool      `json:"authenticated"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
	SessionID       string    `json:"-"`
}

// Authenticator は資格情報を検証する仕組みです。
// 一致しない場合は ErrBadCredentials を返します。
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Principal, error)
}

// StaticAuthenticator は設定で与えられたユーザー表（ユーザー名 → bcryptハッシュ）で検証します。
type StaticAuthenticator struct {
	users map[string]string

	dummyOnce sync.Once
	dummyHash []byte
}

// NewStaticAuthenticator は StaticAuthenticator を作成します。
func NewStaticAuthenticator(users map[string]string) *StaticAuthenticator {
	copied := make(map[string]string, len(users))
	for name, hash := range users {
		copied[name] = hash
	}
	return &StaticAuthenticator{users: copied}
}

// Authenticate はユーザー名とパスワードを検証します。
func (a *StaticAuthenticator) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	if len(a.users) == 0 {
		return nil, ErrNoUsers
	}

	hash, ok := a.users[username]
	if !ok {
		// 存在しないユーザーでも応答時間を揃える
		_ = bcrypt.CompareHashAndPassword(a.dummy(), []byte(password))
		return nil, ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("verify password for %q: %w", username, err)
	}

	return &Principal{
		ID:              username,
		Username:        username,
		Authenticated:   true,
		AuthenticatedAt: time.Now().UTC(),
	}, nil
}

func (a *StaticAuthenticator) dummy() []byte {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	})
	return a.dummyHash
}
