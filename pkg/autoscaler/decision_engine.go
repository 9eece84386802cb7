package autoscaler

import "time"

// DecisionEngine pure wake/sleep decision
type DecisionEngine struct {
	threshold   float64
	idleTimeout time.Duration
}

// NewDecisionEngine creates a decision engine.
// threshold is in requests per minute; idleTimeout must be positive.
func NewDecisionEngine(threshold float64, idleTimeout time.Duration) *DecisionEngine {
	return &DecisionEngine{
		threshold:   threshold,
		idleTimeout: idleTimeout,
	}
}

// Decide maps one cycle's observations to an action.
//
//  1. traffic above threshold inside an active sleep window wakes everything;
//     this wins over a pending idle sleep
//  2. after a traffic-triggered wake, idle time >= timeout sleeps everything
//     (no traffic ever recorded counts as idle)
//  3. otherwise nothing happens; scheduled sleep is left to the schedule owner
func (e *DecisionEngine) Decide(in DecisionInput) Action {
	if len(in.ActiveWindows) > 0 && in.Sample.RequestRate > e.threshold {
		return WakeAll
	}

	if in.Idle.WokenByTraffic {
		if in.Idle.LastTrafficAt.IsZero() || in.Now.Sub(in.Idle.LastTrafficAt) >= e.idleTimeout {
			return SleepAll
		}
	}

	return NoOp
}

// Threshold wake threshold in requests per minute
func (e *DecisionEngine) Threshold() float64 {
	return e.threshold
}

// IdleTimeout idle re-sleep timeout
func (e *DecisionEngine) IdleTimeout() time.Duration {
	return e.idleTimeout
}
