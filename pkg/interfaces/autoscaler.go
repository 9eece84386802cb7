package interfaces

import "time"

// WakeEvent wake/sleep event (history record)
type WakeEvent struct {
	ID          string    `json:"id"`
	Namespace   string    `json:"namespace"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"` // "wake", "sleep", "failed"
	Mode        string    `json:"mode"`   // "replicas", "schedule-patch"
	Trigger     string    `json:"trigger"` // "poll", "signal", "manual"
	Reason      string    `json:"reason"`
	TrafficRate float64   `json:"trafficRate"`
	Mutations   int       `json:"mutations"`
	Workloads   []string  `json:"workloads,omitempty"`
}
