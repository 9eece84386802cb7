package autoscaler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trafficwaker/pkg/constants"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
	"trafficwaker/pkg/metrics"
	"trafficwaker/pkg/schedule"
)

// EventStore wake/sleep history
type EventStore interface {
	Record(ctx context.Context, event *interfaces.WakeEvent) error
	ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error)
}

// ApplyRequest one action to apply
type ApplyRequest struct {
	Action  Action
	Trigger string
	Sample  interfaces.TrafficSample
	Now     time.Time
	Reason  string
}

// ApplyResult what an application changed
type ApplyResult struct {
	Mutations int
	Workloads []string
	// HadSleeping at least one workload was asleep when a wake was applied
	HadSleeping bool
	// Disabled the reconciler was disabled and nothing was applied
	Disabled bool
}

// Executor executor - applies wake/sleep actions idempotently
type Executor struct {
	config     *Config
	controller interfaces.WorkloadController
	events     EventStore
	metrics    *metrics.Metrics
}

// NewExecutor creates executor
func NewExecutor(config *Config, controller interfaces.WorkloadController, events EventStore, m *metrics.Metrics) *Executor {
	return &Executor{
		config:     config,
		controller: controller,
		events:     events,
		metrics:    m,
	}
}

// Apply applies the action under the mutation timeout. Repeated application
// of the same action issues no further mutations. Per-workload failures are
// joined; the caller retries on the next cycle.
func (e *Executor) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if req.Action == NoOp {
		return &ApplyResult{}, nil
	}

	mutationCtx, cancel := context.WithTimeout(ctx, e.config.MutationTimeout)
	defer cancel()

	var (
		result *ApplyResult
		err    error
	)
	if e.config.Mode == constants.ModeSchedulePatch {
		result, err = e.applySchedulePatch(mutationCtx, req)
	} else {
		result, err = e.applyReplicas(mutationCtx, req)
	}

	if err != nil {
		e.metrics.Failure(metrics.FailureBackend)
	}
	if result.Mutations > 0 || err != nil {
		e.recordEvent(ctx, req, result, err)
	}
	if result.Mutations > 0 {
		e.metrics.Action(req.Action.String(), req.Trigger)
		e.metrics.Mutations(result.Mutations)
	}
	return result, err
}

// applyReplicas scales every workload of the namespace directly
func (e *Executor) applyReplicas(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	result := &ApplyResult{}

	workloads, err := e.controller.ListWorkloads(ctx, e.config.Namespace)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, w := range workloads {
		var target int
		switch req.Action {
		case WakeAll:
			if !w.Asleep() {
				continue
			}
			result.HadSleeping = true
			target = w.RestoreReplicas
			if target <= 0 {
				target = e.config.WakeReplicas
			}
		case SleepAll:
			if w.Asleep() {
				continue
			}
			target = 0
		}

		changed, err := e.controller.SetReplicas(ctx, w.Name, w.Namespace, target)
		if err != nil {
			logger.ErrorCtx(ctx, "failed to %s %s/%s: %v", req.Action, w.Namespace, w.Name, err)
			errs = append(errs, err)
			continue
		}
		if changed {
			result.Mutations++
			result.Workloads = append(result.Workloads, w.Name)
		}
	}

	if result.Mutations > 0 {
		logger.InfoCtx(ctx, "%s applied to %d workloads in %s (trigger=%s, rate=%.2f/min): %v",
			req.Action, result.Mutations, e.config.Namespace, req.Trigger, req.Sample.RequestRate, result.Workloads)
	}
	return result, errors.Join(errs...)
}

// applySchedulePatch shifts the SleepInfo wake/sleep time to now+lead and lets
// the schedule owner perform the scaling
func (e *Executor) applySchedulePatch(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	result := &ApplyResult{}

	workloads, err := e.controller.ListWorkloads(ctx, e.config.Namespace)
	if err != nil {
		// the patch itself does not depend on the workload list
		logger.WarnCtx(ctx, "failed to list workloads before schedule patch: %v", err)
	} else if !e.patchNeeded(req.Action, workloads, result) {
		logger.DebugCtx(ctx, "%s skipped: workloads in %s already in target state", req.Action, e.config.Namespace)
		return result, nil
	}

	names, err := e.scheduleNames(ctx)
	if err != nil {
		return result, err
	}
	if len(names) == 0 {
		return result, fmt.Errorf("%w: no sleepinfo in %s to patch", interfaces.ErrBackendUnavailable, e.config.Namespace)
	}

	field := constants.SleepInfoFieldWakeUpAt
	if req.Action == SleepAll {
		field = constants.SleepInfoFieldSleepAt
	}
	loc := e.config.Location
	if loc == nil {
		loc = time.UTC
	}
	value := req.Now.Add(e.config.PatchLead).In(loc).Format("15:04")
	nowOfDay := interfaces.TimeOfDayOf(req.Now.In(loc))

	var errs []error
	for _, name := range names {
		current, err := e.controller.GetScheduleWindow(ctx, name, e.config.Namespace, field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if e.transitionPending(current, nowOfDay) {
			logger.DebugCtx(ctx, "%s of sleepinfo %s/%s already due at %s, not moved", field, e.config.Namespace, name, current)
			continue
		}
		if err := e.controller.PatchScheduleWindow(ctx, name, e.config.Namespace, field, value); err != nil {
			logger.ErrorCtx(ctx, "failed to patch %s of sleepinfo %s/%s: %v", field, e.config.Namespace, name, err)
			errs = append(errs, err)
			continue
		}
		result.Mutations++
		result.Workloads = append(result.Workloads, name)
	}

	if result.Mutations > 0 {
		logger.InfoCtx(ctx, "%s scheduled via %s=%s on %v (trigger=%s)",
			req.Action, field, value, result.Workloads, req.Trigger)
	}
	return result, errors.Join(errs...)
}

// transitionPending reports whether current already lies in [now, now+lead].
// Moving it again would push the transition further out on every cycle.
func (e *Executor) transitionPending(current string, now interfaces.TimeOfDay) bool {
	at, err := schedule.ParseTimeOfDay(current)
	if err != nil {
		return false
	}
	lead := int((e.config.PatchLead + time.Minute - 1) / time.Minute)
	ahead := (int(at) - int(now) + interfaces.MinutesPerDay) % interfaces.MinutesPerDay
	return ahead <= lead
}

func (e *Executor) patchNeeded(action Action, workloads []interfaces.WorkloadState, result *ApplyResult) bool {
	asleep := 0
	for _, w := range workloads {
		if w.Asleep() {
			asleep++
		}
	}
	if action == WakeAll {
		result.HadSleeping = asleep > 0
		return asleep > 0
	}
	return asleep < len(workloads)
}

func (e *Executor) scheduleNames(ctx context.Context) ([]string, error) {
	if len(e.config.ScheduleNames) > 0 {
		return e.config.ScheduleNames, nil
	}
	lister, ok := e.controller.(interfaces.ScheduleResourceLister)
	if !ok {
		return nil, fmt.Errorf("no schedule resource configured for %s", e.config.Namespace)
	}
	return lister.ListScheduleResources(ctx, e.config.Namespace)
}

func (e *Executor) recordEvent(ctx context.Context, req ApplyRequest, result *ApplyResult, applyErr error) {
	if e.events == nil {
		return
	}

	action := req.Action.String()
	reason := req.Reason
	if applyErr != nil {
		action = "failed"
		reason = fmt.Sprintf("%s %s: %v", req.Reason, req.Action, applyErr)
	}

	event := &interfaces.WakeEvent{
		ID:          generateEventID(),
		Namespace:   e.config.Namespace,
		Timestamp:   req.Now,
		Action:      action,
		Mode:        e.config.Mode,
		Trigger:     req.Trigger,
		Reason:      reason,
		TrafficRate: req.Sample.RequestRate,
		Mutations:   result.Mutations,
		Workloads:   result.Workloads,
	}
	if err := e.events.Record(ctx, event); err != nil {
		logger.ErrorCtx(ctx, "failed to save %s event: %v", action, err)
	}
}

// generateEventID generates event ID
func generateEventID() string {
	return "evt_" + uuid.New().String()
}
