package auth

import (
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// loginLimiter は IP ごとのログイン失敗回数を数え、上限に達したらロックします。
// maxAttempts が 0 の場合は何もしません。
type loginLimiter struct {
	maxAttempts  int
	window       time.Duration
	lockDuration time.Duration
	now          func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState
}

func newLoginLimiter(maxAttempts int, window, lockDuration time.Duration, now func() time.Time) *loginLimiter {
	return &loginLimiter{
		maxAttempts:  maxAttempts,
		window:       window,
		lockDuration: lockDuration,
		now:          now,
		attempts:     make(map[string]*attemptState),
	}
}

func (l *loginLimiter) enabled() bool {
	return l.maxAttempts > 0
}

// retryAfter はロック中なら残り時間を返します。
func (l *loginLimiter) retryAfter(ip string) time.Duration {
	if !l.enabled() {
		return 0
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[ip]
	if !ok {
		return 0
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// recordFailure は失敗を記録し、残りの試行回数と、今回の失敗でロックされたかを返します。
func (l *loginLimiter) recordFailure(ip string) (int, bool) {
	if !l.enabled() {
		return 0, false
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	for key, s := range l.attempts {
		if l.stale(s, now) {
			delete(l.attempts, key)
		}
	}

	state, ok := l.attempts[ip]
	if !ok {
		state = &attemptState{firstAttempt: now}
		l.attempts[ip] = state
	}

	state.count++
	locked := false
	if state.count >= l.maxAttempts {
		state.lockedUntil = now.Add(l.lockDuration)
		state.count = l.maxAttempts
		locked = true
	}
	return l.maxAttempts - state.count, locked
}

// stale はロックが解除済み、またはロックされずに集計期間を過ぎたエントリかを返します。
func (l *loginLimiter) stale(s *attemptState, now time.Time) bool {
	if !s.lockedUntil.IsZero() {
		return !now.Before(s.lockedUntil)
	}
	return now.Sub(s.firstAttempt) > l.window
}

func (l *loginLimiter) reset(ip string) {
	if !l.enabled() {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, ip)
}
