package interfaces

import "errors"

// Error taxonomy shared by the traffic, schedule and workload backends.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrMetricsUnavailable the metrics query failed or timed out
	ErrMetricsUnavailable = errors.New("metrics unavailable")

	// ErrScheduleUnavailable the sleep schedule resource could not be read
	ErrScheduleUnavailable = errors.New("schedule unavailable")

	// ErrBackendUnavailable the orchestration API rejected or failed a call
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrConfigInvalid startup configuration is malformed; fatal
	ErrConfigInvalid = errors.New("invalid configuration")
)
