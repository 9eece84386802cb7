package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"trafficwaker/pkg/logger"
)

const (
	reconcileLockKey    = "trafficwaker:reconcile-lock"
	lockTTL             = 30 * time.Second // TTL, bounds a crashed holder
	lockAcquireTimeout  = 5 * time.Second
	lockExtendInterval  = 10 * time.Second
	maxLockHoldDuration = 2 * time.Minute
)

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// 只续期自己持有的锁
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("expire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context) (bool, error)

	// Unlock 释放锁
	Unlock(ctx context.Context) error

	// IsHeld 检查是否持有锁
	IsHeld() bool
}

// RedisDistributedLock Redis 分布式锁实现
type RedisDistributedLock struct {
	client       *redis.Client
	lockKey      string
	lockValue    string // owner token, never release another instance's lock
	ttl          time.Duration
	isHeld       bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
	mu           sync.Mutex
}

// NewRedisDistributedLock 创建 Redis 分布式锁
// A nil client degrades to single-instance mode: TryLock always succeeds.
func NewRedisDistributedLock(client *redis.Client, lockKey string) *RedisDistributedLock {
	if lockKey == "" {
		lockKey = reconcileLockKey
	}
	return &RedisDistributedLock{
		client:    client,
		lockKey:   lockKey,
		lockValue: fmt.Sprintf("%s-%s", lockKey, uuid.New().String()),
		ttl:       lockTTL,
		stopRenew: make(chan struct{}),
	}
}

// TryLock 尝试获取锁（SET NX EX）
func (l *RedisDistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		logger.DebugCtx(ctx, "reconcile lock %s already held by another instance", l.lockKey)
		return false, nil
	}

	l.mu.Lock()
	l.isHeld = true
	l.acquiredAt = time.Now()
	// fresh channel per acquisition so TryLock/Unlock can cycle
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	stopRenew := l.stopRenew
	l.mu.Unlock()

	go l.renewLock(ctx, stopRenew)

	logger.DebugCtx(ctx, "reconcile lock %s acquired", l.lockKey)
	return true, nil
}

// Unlock 释放锁
func (l *RedisDistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld {
		l.mu.Unlock()
		return nil
	}

	if l.client == nil {
		l.isHeld = false
		l.mu.Unlock()
		return nil
	}

	if !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	result, err := unlockScript.Run(ctx, l.client, []string{l.lockKey}, l.lockValue).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()

	if result == 1 {
		logger.DebugCtx(ctx, "reconcile lock %s released", l.lockKey)
	} else {
		logger.WarnCtx(ctx, "reconcile lock %s was already released or held by another instance", l.lockKey)
	}
	return nil
}

// IsHeld 检查是否持有锁
func (l *RedisDistributedLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

// renewLock 自动续期锁（后台协程）
func (l *RedisDistributedLock) renewLock(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(lockExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			holdDuration := time.Since(l.acquiredAt)
			l.mu.Unlock()

			if holdDuration > maxLockHoldDuration {
				// Unlock stays with the holder; only mark the lock as lost here
				logger.WarnCtx(ctx, "reconcile lock held for too long (%.0f seconds), giving it up",
					holdDuration.Seconds())
				l.markLost()
				return
			}

			result, err := renewScript.Run(ctx, l.client, []string{l.lockKey},
				l.lockValue, int(l.ttl.Seconds())).Int64()
			if err != nil {
				logger.WarnCtx(ctx, "failed to renew reconcile lock: %v", err)
				l.markLost()
				return
			}
			if result == 0 {
				logger.WarnCtx(ctx, "reconcile lock renewal failed, lock lost")
				l.markLost()
				return
			}

			logger.DebugCtx(ctx, "reconcile lock renewed")
		}
	}
}

func (l *RedisDistributedLock) markLost() {
	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()
}
