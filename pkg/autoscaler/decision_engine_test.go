package autoscaler

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"trafficwaker/pkg/interfaces"
)

var testWindow = interfaces.SleepWindow{
	Name:    "night",
	Days:    interfaces.AllWeekdays,
	SleepAt: interfaces.NewTimeOfDay(0, 0),
	WakeAt:  interfaces.NewTimeOfDay(9, 0),
}

func TestDecisionEngine_Decide(t *testing.T) {
	now := time.Date(2024, time.January, 2, 3, 0, 0, 0, time.UTC)
	engine := NewDecisionEngine(1, 2*time.Minute)

	tests := []struct {
		name     string
		rate     float64
		windows  []interfaces.SleepWindow
		idle     IdleState
		expected Action
	}{
		{
			name:     "traffic inside sleep window wakes",
			rate:     5,
			windows:  []interfaces.SleepWindow{testWindow},
			expected: WakeAll,
		},
		{
			name:     "rate equal to threshold does not wake",
			rate:     1,
			windows:  []interfaces.SleepWindow{testWindow},
			expected: NoOp,
		},
		{
			name:     "traffic outside any window is ignored",
			rate:     50,
			expected: NoOp,
		},
		{
			name:     "idle after traffic wake sleeps",
			windows:  []interfaces.SleepWindow{testWindow},
			idle:     IdleState{LastTrafficAt: now.Add(-3 * time.Minute), WokenByTraffic: true},
			expected: SleepAll,
		},
		{
			name:     "idle exactly at timeout sleeps",
			idle:     IdleState{LastTrafficAt: now.Add(-2 * time.Minute), WokenByTraffic: true},
			expected: SleepAll,
		},
		{
			name:     "recent traffic keeps workloads awake",
			windows:  []interfaces.SleepWindow{testWindow},
			idle:     IdleState{LastTrafficAt: now.Add(-30 * time.Second), WokenByTraffic: true},
			expected: NoOp,
		},
		{
			name:     "woken without recorded traffic counts as idle",
			idle:     IdleState{WokenByTraffic: true},
			expected: SleepAll,
		},
		{
			name:     "idle without traffic wake is left to the schedule",
			windows:  []interfaces.SleepWindow{testWindow},
			idle:     IdleState{LastTrafficAt: now.Add(-time.Hour)},
			expected: NoOp,
		},
		{
			name:     "wake wins over pending idle sleep",
			rate:     10,
			windows:  []interfaces.SleepWindow{testWindow},
			idle:     IdleState{LastTrafficAt: now.Add(-time.Hour), WokenByTraffic: true},
			expected: WakeAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := engine.Decide(DecisionInput{
				Sample:        interfaces.TrafficSample{RequestRate: tt.rate, ObservedAt: now},
				ActiveWindows: tt.windows,
				Idle:          tt.idle,
				Now:           now,
			})
			assert.Equal(t, tt.expected, action, "got %s", action)
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "noop", NoOp.String())
	assert.Equal(t, "wake", WakeAll.String())
	assert.Equal(t, "sleep", SleepAll.String())
}

func TestProperty_DecideWakeIffWindowAndTraffic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	now := time.Date(2024, time.January, 2, 3, 0, 0, 0, time.UTC)
	engine := NewDecisionEngine(10, 5*time.Minute)

	properties.Property("WakeAll iff window active and rate above threshold", prop.ForAll(
		func(rate float64, inWindow, woken bool, idleSeconds int) bool {
			var windows []interfaces.SleepWindow
			if inWindow {
				windows = []interfaces.SleepWindow{testWindow}
			}
			action := engine.Decide(DecisionInput{
				Sample:        interfaces.TrafficSample{RequestRate: rate},
				ActiveWindows: windows,
				Idle: IdleState{
					LastTrafficAt:  now.Add(-time.Duration(idleSeconds) * time.Second),
					WokenByTraffic: woken,
				},
				Now: now,
			})
			return (action == WakeAll) == (inWindow && rate > 10)
		},
		gen.Float64Range(0, 100),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, 3600),
	))

	properties.Property("SleepAll iff no wake, woken by traffic and idle >= timeout", prop.ForAll(
		func(rate float64, inWindow, woken bool, idleSeconds int) bool {
			var windows []interfaces.SleepWindow
			if inWindow {
				windows = []interfaces.SleepWindow{testWindow}
			}
			action := engine.Decide(DecisionInput{
				Sample:        interfaces.TrafficSample{RequestRate: rate},
				ActiveWindows: windows,
				Idle: IdleState{
					LastTrafficAt:  now.Add(-time.Duration(idleSeconds) * time.Second),
					WokenByTraffic: woken,
				},
				Now: now,
			})
			wake := inWindow && rate > 10
			expected := !wake && woken && idleSeconds >= 300
			return (action == SleepAll) == expected
		},
		gen.Float64Range(0, 100),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, 3600),
	))

	properties.TestingRun(t)
}
