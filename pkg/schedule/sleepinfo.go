package schedule

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"

	"trafficwaker/pkg/constants"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
)

// SleepInfoSource reads kube-green SleepInfo resources of one namespace
type SleepInfoSource struct {
	client    dynamic.Interface
	namespace string
	location  *time.Location
}

// NewSleepInfoSource creates a schedule source.
// location is used for resources that do not declare spec.timeZone.
func NewSleepInfoSource(client dynamic.Interface, namespace string, location *time.Location) *SleepInfoSource {
	if location == nil {
		location = time.UTC
	}
	return &SleepInfoSource{
		client:    client,
		namespace: namespace,
		location:  location,
	}
}

// Windows lists every parseable sleep window, active or not
func (s *SleepInfoSource) Windows(ctx context.Context) ([]interfaces.SleepWindow, error) {
	list, err := s.client.Resource(constants.SleepInfoGVR).Namespace(s.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list sleepinfos in %s: %v", interfaces.ErrScheduleUnavailable, s.namespace, err)
	}

	windows := make([]interfaces.SleepWindow, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		window, err := WindowFromSleepInfo(item, s.location)
		if err != nil {
			logger.WarnCtx(ctx, "skipping sleepinfo %s/%s: %v", item.GetNamespace(), item.GetName(), err)
			continue
		}
		windows = append(windows, window)
	}
	return windows, nil
}

// ActiveWindows returns the windows active at now
func (s *SleepInfoSource) ActiveWindows(ctx context.Context, now time.Time) ([]interfaces.SleepWindow, error) {
	windows, err := s.Windows(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]interfaces.SleepWindow, 0, len(windows))
	for _, w := range windows {
		if w.ActiveAt(now) {
			active = append(active, w)
		}
	}
	return active, nil
}

// WindowFromSleepInfo converts a SleepInfo object into a typed window.
// Missing sleepAt/wakeUpAt fall back to 00:00/09:00; spec.timeZone overrides defaultLoc.
func WindowFromSleepInfo(obj *unstructured.Unstructured, defaultLoc *time.Location) (interfaces.SleepWindow, error) {
	weekdays, _, err := unstructured.NestedString(obj.Object, "spec", constants.SleepInfoFieldWeekdays)
	if err != nil {
		return interfaces.SleepWindow{}, fmt.Errorf("read weekdays: %w", err)
	}
	days, err := ParseWeekdays(weekdays)
	if err != nil {
		return interfaces.SleepWindow{}, err
	}

	sleepAt, err := timeField(obj, constants.SleepInfoFieldSleepAt, constants.DefaultSleepAt)
	if err != nil {
		return interfaces.SleepWindow{}, err
	}
	wakeAt, err := timeField(obj, constants.SleepInfoFieldWakeUpAt, constants.DefaultWakeUpAt)
	if err != nil {
		return interfaces.SleepWindow{}, err
	}

	loc := defaultLoc
	if tz, found, _ := unstructured.NestedString(obj.Object, "spec", constants.SleepInfoFieldTimeZone); found && tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return interfaces.SleepWindow{}, fmt.Errorf("invalid timeZone %q: %w", tz, err)
		}
	}

	return interfaces.SleepWindow{
		Name:     obj.GetName(),
		Days:     days,
		SleepAt:  sleepAt,
		WakeAt:   wakeAt,
		Location: loc,
	}, nil
}

func timeField(obj *unstructured.Unstructured, field, fallback string) (interfaces.TimeOfDay, error) {
	value, found, err := unstructured.NestedString(obj.Object, "spec", field)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", field, err)
	}
	if !found || value == "" {
		value = fallback
	}
	t, err := ParseTimeOfDay(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
