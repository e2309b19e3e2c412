package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyAnalysisSubscriber = "reviewmeter:ratelimit:analysis:%s"
	keyAnalysisSession    = "reviewmeter:lock:session:%s"
)

// AnalysisLimiter throttles job submissions per subscriber and keeps a
// progress session to one running job. A nil limiter allows everything.
type AnalysisLimiter struct {
	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

type AnalysisLimiterParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

func NewAnalysisLimiter(p AnalysisLimiterParam) (*AnalysisLimiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}
	if p.Redis == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if cfg.AnalysisRate <= 0 || cfg.AnalysisBurst <= 0 {
		return nil, errors.New("analysis rate limit must be positive")
	}

	lockTTL := time.Duration(cfg.SessionLockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}

	p.Log.Named("ratelimit").Info("analysis rate limit enabled",
		zap.Float64("rate", cfg.AnalysisRate),
		zap.Int("burst", cfg.AnalysisBurst),
		zap.Duration("session_lock_ttl", lockTTL),
	)

	return &AnalysisLimiter{
		bucket:  NewTokenBucket(p.Redis),
		locker:  NewLocker(p.Redis),
		rate:    cfg.AnalysisRate,
		burst:   cfg.AnalysisBurst,
		lockTTL: lockTTL,
	}, nil
}

func (l *AnalysisLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AnalysisLimiter) AllowSubscriber(ctx context.Context, subscriberID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAnalysisSubscriber, strings.TrimSpace(subscriberID)), l.rate, l.burst)
}

// SessionLock is the lease a running job holds on its progress session.
// A nil lock is valid and holds nothing.
type SessionLock struct {
	locker *Locker
	key    string
	token  string
	minTTL time.Duration
}

// AcquireSession returns ok=false when another job already holds the
// session. With the limiter disabled it returns a nil lock and ok=true.
func (l *AnalysisLimiter) AcquireSession(ctx context.Context, sessionKey string) (*SessionLock, bool, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if !l.Enabled() || sessionKey == "" {
		return nil, true, nil
	}

	key := fmt.Sprintf(keyAnalysisSession, sessionKey)
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &SessionLock{locker: l.locker, key: key, token: token, minTTL: l.lockTTL}, true, nil
}

// Extend keeps the lease for at least ttl, and never less than the
// configured session lock TTL.
func (s *SessionLock) Extend(ctx context.Context, ttl time.Duration) error {
	if s == nil {
		return nil
	}
	return s.locker.Extend(ctx, s.key, s.token, max(ttl, s.minTTL))
}

func (s *SessionLock) Release(ctx context.Context) {
	if s == nil {
		return
	}
	_ = s.locker.Release(context.WithoutCancel(ctx), s.key, s.token)
}
