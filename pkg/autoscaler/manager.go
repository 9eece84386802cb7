package autoscaler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/utils/clock"

	"trafficwaker/pkg/constants"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
	"trafficwaker/pkg/metrics"
)

// Manager reconciler: polls schedule and traffic, decides and applies wake/sleep
type Manager struct {
	config    *Config
	enabled   bool
	running   bool
	mu        sync.RWMutex
	cycleMu   sync.Mutex // serialises cycles and signal-issued wakes
	stopCh    chan struct{}
	triggerCh chan struct{}

	schedule   interfaces.ScheduleSource
	traffic    interfaces.TrafficSource
	controller interfaces.WorkloadController
	engine     *DecisionEngine
	tracker    *IdleTracker
	executor   *Executor
	events     EventStore
	metrics    *metrics.Metrics
	clock      clock.WithTicker

	redisClient     *redis.Client   // persisted runtime settings
	configKey       string          // settings key
	distributedLock DistributedLock // one reconciler across replicas

	// guarded by mu
	state       State
	windows     []interfaces.SleepWindow
	lastSample  interfaces.TrafficSample
	lastAction  Action
	lastRunTime time.Time
}

// NewManager creates the reconciler. events, redisClient and m may be nil.
func NewManager(
	config *Config,
	schedule interfaces.ScheduleSource,
	traffic interfaces.TrafficSource,
	controller interfaces.WorkloadController,
	events EventStore,
	redisClient *redis.Client,
	m *metrics.Metrics,
	clk clock.WithTicker,
) *Manager {
	if clk == nil {
		clk = clock.RealClock{}
	}

	// 如果 redisClient 为 nil，锁会自动降级为单实例模式
	lockKey := fmt.Sprintf("%s:%s", reconcileLockKey, config.Namespace)
	distributedLock := NewRedisDistributedLock(redisClient, lockKey)

	manager := &Manager{
		config:          config,
		enabled:         config.Enabled,
		stopCh:          make(chan struct{}),
		schedule:        schedule,
		traffic:         traffic,
		controller:      controller,
		engine:          NewDecisionEngine(config.WakeThreshold, config.IdleTimeout),
		tracker:         NewIdleTracker(),
		executor:        NewExecutor(config, controller, events, m),
		events:          events,
		metrics:         m,
		clock:           clk,
		redisClient:     redisClient,
		configKey:       fmt.Sprintf("trafficwaker:%s:settings", config.Namespace),
		distributedLock: distributedLock,
		state:           StateAwakeScheduled,
	}

	manager.loadPersistedConfig(context.Background())
	manager.metrics.State(int(manager.state))
	return manager
}

// Start starts the control loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.triggerCh = make(chan struct{}, 1)
	m.mu.Unlock()

	logger.InfoCtx(ctx, "starting reconciler for namespace %s, mode: %s, interval: %s",
		m.config.Namespace, m.config.Mode, m.config.Interval)

	go m.controlLoop(ctx)

	// first cycle right away
	m.Trigger()
	return nil
}

// Stop stops the control loop
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("reconciler is not running")
	}

	close(m.stopCh)
	m.triggerCh = nil
	m.running = false

	logger.Info("reconciler stopped")
	return nil
}

// controlLoop 控制循环
func (m *Manager) controlLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.mu.RLock()
	stopCh := m.stopCh
	triggerCh := m.triggerCh
	m.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C():
			m.runCycle(ctx, TriggerPoll)
		case <-triggerCh:
			m.runCycle(ctx, TriggerSignal)
		}
	}
}

func (m *Manager) runCycle(ctx context.Context, trigger string) {
	if !m.IsEnabled() {
		return
	}
	if err := m.runOnce(ctx, trigger); err != nil {
		logger.ErrorCtx(ctx, "reconcile cycle failed (trigger=%s): %v", trigger, err)
	}
}

// Trigger requests an immediate cycle without blocking
func (m *Manager) Trigger() {
	m.mu.RLock()
	triggerCh := m.triggerCh
	m.mu.RUnlock()
	if triggerCh == nil {
		return
	}
	select {
	case triggerCh <- struct{}{}:
	default:
	}
}

// Reconcile runs one cycle synchronously (manual trigger)
func (m *Manager) Reconcile(ctx context.Context) error {
	logger.InfoCtx(ctx, "manually triggering reconcile for namespace: %s", m.config.Namespace)
	return m.runOnce(ctx, TriggerManual)
}

// runOnce schedule read -> traffic read -> idle -> decide -> apply
func (m *Manager) runOnce(ctx context.Context, trigger string) error {
	acquired, err := m.distributedLock.TryLock(ctx)
	if err != nil {
		m.metrics.Cycle("error")
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	if !acquired {
		// 另一个副本正在执行，跳过本次执行
		logger.DebugCtx(ctx, "reconcile lock held by another instance, skipping this run")
		m.metrics.Cycle("skipped")
		return nil
	}
	defer func() {
		if err := m.distributedLock.Unlock(ctx); err != nil {
			logger.ErrorCtx(ctx, "failed to release distributed lock: %v", err)
		}
	}()

	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	now := m.clock.Now()

	// Step 1: schedule
	windows, err := m.schedule.ActiveWindows(ctx, now)
	m.mu.Lock()
	if err != nil {
		m.metrics.Failure(metrics.FailureSchedule)
		logger.WarnCtx(ctx, "schedule read failed, keeping %d previously active windows: %v", len(m.windows), err)
		windows = m.windows
	} else {
		m.windows = windows
	}
	m.refineState(windows)
	engine := m.engine
	m.mu.Unlock()

	// Step 2: traffic
	sample := interfaces.TrafficSample{
		RequestRate: m.traffic.CurrentRate(ctx),
		ObservedAt:  now,
	}
	m.metrics.TrafficRate(sample.RequestRate)
	if sample.RequestRate > engine.Threshold() {
		m.tracker.RecordTraffic(now)
	}

	// Step 3: idle + decision
	idle := m.tracker.Snapshot()
	elapsed, recorded := m.tracker.ElapsedIdle(now)
	m.metrics.IdleSeconds(elapsed.Seconds(), recorded)

	action := engine.Decide(DecisionInput{
		Sample:        sample,
		ActiveWindows: windows,
		Idle:          idle,
		Now:           now,
	})

	m.mu.Lock()
	m.lastSample = sample
	m.lastAction = action
	m.lastRunTime = now
	state := m.state
	m.mu.Unlock()

	logger.DebugCtx(ctx, "reconcile: state=%s windows=%d rate=%.2f/min idle=%s woken=%v action=%s",
		state, len(windows), sample.RequestRate, elapsed, idle.WokenByTraffic, action)

	if action == NoOp {
		m.metrics.Cycle("ok")
		return nil
	}

	// Step 4: apply
	reason := fmt.Sprintf("traffic %.2f/min above %.2f inside sleep window", sample.RequestRate, engine.Threshold())
	if action == SleepAll {
		reason = fmt.Sprintf("idle for %s (timeout %s) after traffic wake", elapsed, engine.IdleTimeout())
	}
	result, err := m.executor.Apply(ctx, ApplyRequest{
		Action:  action,
		Trigger: trigger,
		Sample:  sample,
		Now:     now,
		Reason:  reason,
	})
	if err != nil {
		// state unchanged, next cycle retries
		m.metrics.Cycle("error")
		return fmt.Errorf("failed to apply %s: %w", action, err)
	}

	m.mu.Lock()
	switch action {
	case WakeAll:
		m.tracker.MarkWokenByTraffic()
		m.setState(StateAwakeTraffic)
	case SleepAll:
		if !m.tracker.ResetIfIdleSince(idle.LastTrafficAt) {
			logger.InfoCtx(ctx, "traffic arrived while sleeping %s, idle clock kept", m.config.Namespace)
		}
		m.setState(StateAsleep)
	}
	m.mu.Unlock()

	if result.Mutations > 0 {
		logger.InfoCtx(ctx, "reconcile applied %s to %s: %d mutations", action, m.config.Namespace, result.Mutations)
	}
	m.metrics.Cycle("ok")
	return nil
}

// refineState follows the schedule owner's transitions. Caller holds mu.
func (m *Manager) refineState(windows []interfaces.SleepWindow) {
	inSleep := len(windows) > 0
	switch m.state {
	case StateAwakeScheduled:
		if inSleep {
			m.setState(StateAsleep)
		}
	case StateAsleep:
		if !inSleep {
			m.setState(StateAwakeScheduled)
		}
	case StateAwakeTraffic:
		// the schedule-patch variant moves the window itself, so only direct
		// replica control hands the workloads back to the schedule
		if !inSleep && m.config.Mode != constants.ModeSchedulePatch {
			m.tracker.ClearWoken()
			m.setState(StateAwakeScheduled)
		}
	}
}

// setState caller holds mu
func (m *Manager) setState(s State) {
	if m.state != s {
		logger.Info(fmt.Sprintf("reconciler state %s -> %s", m.state, s))
	}
	m.state = s
	m.metrics.State(int(s))
}

// HandleSignal records inbound traffic and wakes the namespace synchronously.
// The traffic is recorded even when the wake fails.
func (m *Manager) HandleSignal(ctx context.Context) (*ApplyResult, error) {
	now := m.clock.Now()
	m.metrics.Signal()
	m.tracker.RecordTraffic(now)

	if !m.IsEnabled() {
		logger.InfoCtx(ctx, "wake signal recorded, reconciler disabled")
		return &ApplyResult{Disabled: true}, nil
	}

	m.cycleMu.Lock()
	m.mu.RLock()
	sleeping := m.state == StateAsleep || len(m.windows) > 0
	m.mu.RUnlock()

	result, err := m.executor.Apply(ctx, ApplyRequest{
		Action:  WakeAll,
		Trigger: TriggerSignal,
		Sample:  interfaces.TrafficSample{ObservedAt: now},
		Now:     now,
		Reason:  "inbound wake signal",
	})
	if err == nil && (sleeping || result.HadSleeping) {
		m.mu.Lock()
		m.tracker.MarkWokenByTraffic()
		m.setState(StateAwakeTraffic)
		m.mu.Unlock()
	}
	m.cycleMu.Unlock()

	m.Trigger()
	if err != nil {
		return result, fmt.Errorf("failed to wake %s: %w", m.config.Namespace, err)
	}
	return result, nil
}

// GetStatus reconciler status
func (m *Manager) GetStatus(ctx context.Context) (*Status, error) {
	now := m.clock.Now()
	m.mu.RLock()
	status := &Status{
		Enabled:       m.enabled,
		Running:       m.running,
		Namespace:     m.config.Namespace,
		Mode:          m.config.Mode,
		State:         m.state,
		LastSample:    m.lastSample,
		LastAction:    m.lastAction.String(),
		LastRunTime:   m.lastRunTime,
		ActiveWindows: append([]interfaces.SleepWindow(nil), m.windows...),
	}
	m.mu.RUnlock()

	status.Idle = m.tracker.Snapshot()
	if elapsed, ok := m.tracker.ElapsedIdle(now); ok {
		status.IdleSeconds = elapsed.Seconds()
	}

	if m.events != nil {
		recent, err := m.events.ListRecent(ctx, m.config.Namespace, 20)
		if err != nil {
			logger.WarnCtx(ctx, "failed to list recent events: %v", err)
		} else {
			status.RecentEvents = make([]interfaces.WakeEvent, len(recent))
			for i, e := range recent {
				status.RecentEvents[i] = *e
			}
		}
	}
	return status, nil
}

// GetHistory recent wake/sleep events
func (m *Manager) GetHistory(ctx context.Context, limit int) ([]*interfaces.WakeEvent, error) {
	if m.events == nil {
		return []*interfaces.WakeEvent{}, nil
	}
	return m.events.ListRecent(ctx, m.config.Namespace, limit)
}

// State current reconciler state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IdleState current idle bookkeeping
func (m *Manager) IdleState() IdleState {
	return m.tracker.Snapshot()
}

// Enable enables reconciling
func (m *Manager) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
	m.config.Enabled = true
	logger.Info("reconciler enabled")

	m.persistConfig(context.Background())
}

// Disable disables reconciling; wake signals are still recorded
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
	m.config.Enabled = false
	logger.Info("reconciler disabled")

	m.persistConfig(context.Background())
}

// IsEnabled 检查是否启用
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// IsRunning 检查是否正在运行
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Settings runtime-tunable settings
type Settings struct {
	Enabled       bool          `json:"enabled"`
	WakeThreshold float64       `json:"wakeThreshold"`
	IdleTimeout   time.Duration `json:"idleTimeout"`
}

// UpdateSettings validates and applies runtime settings
func (m *Manager) UpdateSettings(ctx context.Context, s Settings) error {
	if s.WakeThreshold < 0 {
		return fmt.Errorf("%w: wake threshold must be >= 0", interfaces.ErrConfigInvalid)
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be > 0", interfaces.ErrConfigInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applySettings(s)

	logger.InfoCtx(ctx, "reconciler settings updated: enabled=%v, threshold=%.2f/min, idle_timeout=%s",
		s.Enabled, s.WakeThreshold, s.IdleTimeout)

	m.persistConfig(ctx)
	return nil
}

// GetSettings current runtime settings
func (m *Manager) GetSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Settings{
		Enabled:       m.enabled,
		WakeThreshold: m.config.WakeThreshold,
		IdleTimeout:   m.config.IdleTimeout,
	}
}

// applySettings caller holds mu
func (m *Manager) applySettings(s Settings) {
	m.enabled = s.Enabled
	m.config.Enabled = s.Enabled
	m.config.WakeThreshold = s.WakeThreshold
	m.config.IdleTimeout = s.IdleTimeout
	m.engine = NewDecisionEngine(s.WakeThreshold, s.IdleTimeout)
}

func (m *Manager) loadPersistedConfig(ctx context.Context) {
	if m.redisClient == nil {
		return
	}
	data, err := m.redisClient.Get(ctx, m.configKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.WarnCtx(ctx, "failed to load reconciler settings from redis: %v", err)
		}
		return
	}

	var persisted Settings
	if err := json.Unmarshal(data, &persisted); err != nil {
		logger.WarnCtx(ctx, "failed to decode reconciler settings from redis: %v", err)
		return
	}
	if persisted.WakeThreshold < 0 || persisted.IdleTimeout <= 0 {
		logger.WarnCtx(ctx, "ignoring invalid persisted reconciler settings: %+v", persisted)
		return
	}

	m.mu.Lock()
	m.applySettings(persisted)
	m.mu.Unlock()

	logger.InfoCtx(ctx, "loaded reconciler settings from redis")
}

// persistConfig caller holds mu
func (m *Manager) persistConfig(ctx context.Context) {
	if m.redisClient == nil {
		return
	}
	data, err := json.Marshal(Settings{
		Enabled:       m.enabled,
		WakeThreshold: m.config.WakeThreshold,
		IdleTimeout:   m.config.IdleTimeout,
	})
	if err != nil {
		logger.WarnCtx(ctx, "failed to encode reconciler settings: %v", err)
		return
	}
	if err := m.redisClient.Set(ctx, m.configKey, data, 0).Err(); err != nil {
		logger.WarnCtx(ctx, "failed to persist reconciler settings: %v", err)
	}
}
