package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/utils/clock"

	"trafficwaker/internal/jobs"
	"trafficwaker/pkg/autoscaler"
	"trafficwaker/pkg/logger"
)

func (app *Application) initJobs() error {
	if app.mysqlRepo == nil {
		logger.InfoCtx(app.ctx, "MySQL not configured, skipping event retention job")
		return nil
	}

	manager := jobs.NewManager(app.ctx, clock.RealClock{})

	// Create distributed locks to prevent multiple replicas from executing background cleanup tasks simultaneously
	// If Redis is unavailable, locks will automatically downgrade to single-instance mode
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	retentionLock := autoscaler.NewRedisDistributedLock(redisClient, "trafficwaker:cleanup:event-retention-lock")
	manager.Register(newEventRetentionJob(time.Hour, app.config.Reconciler.EventRetention, app.mysqlRepo.WakeEvent, retentionLock, clock.RealClock{}))

	app.jobsManager = manager
	return nil
}

// eventPruner deletes events older than a cutoff
type eventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// eventRetentionJob deletes wake/sleep events past the retention window
type eventRetentionJob struct {
	interval        time.Duration
	retention       time.Duration
	pruner          eventPruner
	distributedLock autoscaler.DistributedLock
	clock           clock.PassiveClock
}

func newEventRetentionJob(interval, retention time.Duration, pruner eventPruner, lock autoscaler.DistributedLock, clk clock.PassiveClock) jobs.Job {
	return &eventRetentionJob{
		interval:        interval,
		retention:       retention,
		pruner:          pruner,
		distributedLock: lock,
		clock:           clk,
	}
}

func (j *eventRetentionJob) Name() string { return "event-retention-cleanup" }

func (j *eventRetentionJob) Interval() time.Duration { return j.interval }

// AlignToInterval runs on the hour
func (j *eventRetentionJob) AlignToInterval() bool { return true }

func (j *eventRetentionJob) Run(ctx context.Context) error {
	if j.pruner == nil {
		return fmt.Errorf("event store not configured")
	}

	// Try to acquire distributed lock
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running event retention cleanup, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	before := j.clock.Now().Add(-j.retention)
	rows, err := j.pruner.DeleteOldEvents(ctx, before)
	if err != nil {
		return err
	}
	if rows > 0 {
		logger.InfoCtx(ctx, "cleaned up %d wake events older than %s", rows, j.retention)
	}
	return nil
}
