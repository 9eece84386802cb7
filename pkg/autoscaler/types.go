package autoscaler

import (
	"time"

	"trafficwaker/pkg/interfaces"
)

// Action wake/sleep decision for one cycle
type Action int

const (
	// NoOp leave workloads alone
	NoOp Action = iota
	// WakeAll wake every workload of the namespace
	WakeAll
	// SleepAll return every workload of the namespace to sleep
	SleepAll
)

func (a Action) String() string {
	switch a {
	case WakeAll:
		return "wake"
	case SleepAll:
		return "sleep"
	default:
		return "noop"
	}
}

// State reconciler state
type State int

const (
	// StateAsleep workloads sleeping (by schedule or after idle timeout)
	StateAsleep State = iota
	// StateAwakeScheduled awake because no sleep window is active
	StateAwakeScheduled
	// StateAwakeTraffic awake inside a sleep window because of traffic
	StateAwakeTraffic
)

func (s State) String() string {
	switch s {
	case StateAsleep:
		return "asleep"
	case StateAwakeScheduled:
		return "awake-scheduled"
	case StateAwakeTraffic:
		return "awake-traffic"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Triggers
const (
	TriggerPoll   = "poll"
	TriggerSignal = "signal"
	TriggerManual = "manual"
)

// Config reconciler configuration
type Config struct {
	Enabled         bool          `json:"enabled"`
	Namespace       string        `json:"namespace"`
	Mode            string        `json:"mode"`            // replicas, schedule-patch
	Interval        time.Duration `json:"interval"`        // poll period
	WakeThreshold   float64       `json:"wakeThreshold"`   // requests per minute
	IdleTimeout     time.Duration `json:"idleTimeout"`     // re-sleep after this much idle time
	MutationTimeout time.Duration `json:"mutationTimeout"` // client-side bound on backend writes
	WakeReplicas    int           `json:"wakeReplicas"`    // replicas for workloads without a recorded count
	PatchLead       time.Duration `json:"patchLead"`       // schedule-patch mode: now + lead
	ScheduleNames   []string      `json:"scheduleNames"`   // schedule-patch mode: SleepInfos to patch, empty = all

	// Location timezone of patched schedule times
	Location *time.Location `json:"-"`
}

// IdleState idle bookkeeping snapshot
type IdleState struct {
	LastTrafficAt  time.Time `json:"lastTrafficAt"` // zero = no traffic recorded
	WokenByTraffic bool      `json:"wokenByTraffic"`
}

// DecisionInput everything Decide needs for one cycle
type DecisionInput struct {
	Sample        interfaces.TrafficSample
	ActiveWindows []interfaces.SleepWindow
	Idle          IdleState
	Now           time.Time
}

// Status reconciler status (admin API)
type Status struct {
	Enabled       bool                     `json:"enabled"`
	Running       bool                     `json:"running"`
	Namespace     string                   `json:"namespace"`
	Mode          string                   `json:"mode"`
	State         State                    `json:"state"`
	Idle          IdleState                `json:"idle"`
	IdleSeconds   float64                  `json:"idleSeconds"`
	LastSample    interfaces.TrafficSample `json:"lastSample"`
	LastAction    string                   `json:"lastAction"`
	LastRunTime   time.Time                `json:"lastRunTime"`
	ActiveWindows []interfaces.SleepWindow `json:"activeWindows"`
	RecentEvents  []interfaces.WakeEvent   `json:"recentEvents,omitempty"`
}
