package autoscaler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trafficwaker/pkg/interfaces"
)

type fakeController struct {
	mu        sync.Mutex
	workloads map[string]*interfaces.WorkloadState
	schedules map[string]map[string]string
	updates   int
	patches   int
	listErr   error
	setErr    error
	patchErr  error
}

func newFakeController(replicas map[string]int) *fakeController {
	c := &fakeController{
		workloads: make(map[string]*interfaces.WorkloadState),
		schedules: make(map[string]map[string]string),
	}
	for name, n := range replicas {
		c.workloads[name] = &interfaces.WorkloadState{
			Name:            name,
			Namespace:       "shop",
			DesiredReplicas: n,
			CurrentReplicas: n,
		}
	}
	return c
}

func (c *fakeController) ListWorkloads(ctx context.Context, namespace string) ([]interfaces.WorkloadState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	names := make([]string, 0, len(c.workloads))
	for name := range c.workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]interfaces.WorkloadState, 0, len(names))
	for _, name := range names {
		out = append(out, *c.workloads[name])
	}
	return out, nil
}

func (c *fakeController) SetReplicas(ctx context.Context, name, namespace string, replicas int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return false, c.setErr
	}
	w, ok := c.workloads[name]
	if !ok {
		return false, fmt.Errorf("%w: deployment %s not found", interfaces.ErrBackendUnavailable, name)
	}
	if w.DesiredReplicas == replicas {
		return false, nil
	}
	if replicas == 0 {
		w.RestoreReplicas = w.DesiredReplicas
	} else {
		w.RestoreReplicas = 0
	}
	w.DesiredReplicas = replicas
	w.CurrentReplicas = replicas
	c.updates++
	return true, nil
}

func (c *fakeController) GetScheduleWindow(ctx context.Context, resourceName, namespace, field string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schedules[resourceName]
	if !ok {
		return "", fmt.Errorf("%w: sleepinfo %s not found", interfaces.ErrBackendUnavailable, resourceName)
	}
	return s[field], nil
}

func (c *fakeController) PatchScheduleWindow(ctx context.Context, resourceName, namespace, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patchErr != nil {
		return c.patchErr
	}
	s, ok := c.schedules[resourceName]
	if !ok {
		return fmt.Errorf("%w: sleepinfo %s not found", interfaces.ErrBackendUnavailable, resourceName)
	}
	s[field] = value
	c.patches++
	return nil
}

func (c *fakeController) ListScheduleResources(ctx context.Context, namespace string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.schedules))
	for name := range c.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *fakeController) replicas(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workloads[name].DesiredReplicas
}

func (c *fakeController) setSleeping(sleeping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.workloads {
		if sleeping {
			w.DesiredReplicas = 0
		} else {
			w.DesiredReplicas = 1
		}
	}
}

type fakeSchedule struct {
	mu      sync.Mutex
	windows []interfaces.SleepWindow
	err     error
}

func (s *fakeSchedule) ActiveWindows(ctx context.Context, now time.Time) ([]interfaces.SleepWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	active := []interfaces.SleepWindow{}
	for _, w := range s.windows {
		if w.ActiveAt(now) {
			active = append(active, w)
		}
	}
	return active, nil
}

func (s *fakeSchedule) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type fakeTraffic struct {
	mu   sync.Mutex
	rate float64
}

func (f *fakeTraffic) CurrentRate(ctx context.Context) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeTraffic) set(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

type memEvents struct {
	mu     sync.Mutex
	events []*interfaces.WakeEvent
}

func (s *memEvents) Record(ctx context.Context, event *interfaces.WakeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memEvents) ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*interfaces.WakeEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].Namespace == namespace {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *memEvents) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}
