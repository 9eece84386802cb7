package interfaces

import "context"

// WorkloadState replica state of one workload in the target namespace.
// Owned by the orchestration backend; a requested change may not be visible yet.
type WorkloadState struct {
	Name            string `json:"name"`
	Namespace       string `json:"namespace"`
	DesiredReplicas int    `json:"desiredReplicas"`
	CurrentReplicas int    `json:"currentReplicas"`
	// RestoreReplicas replica count recorded before the controller put the
	// workload to sleep; 0 when unknown
	RestoreReplicas int `json:"restoreReplicas,omitempty"`
}

// Asleep reports whether the workload is scaled to zero
func (w WorkloadState) Asleep() bool {
	return w.DesiredReplicas == 0
}

// WorkloadController orchestration API used to apply wake/sleep actions.
// All methods wrap communication failures with ErrBackendUnavailable.
type WorkloadController interface {
	// ListWorkloads lists the workloads in scope for a namespace
	ListWorkloads(ctx context.Context, namespace string) ([]WorkloadState, error)

	// SetReplicas sets the desired replica count. It is a no-op (changed=false)
	// when the desired count already equals replicas.
	SetReplicas(ctx context.Context, name, namespace string, replicas int) (changed bool, err error)

	// GetScheduleWindow reads a HH:MM field of a sleep schedule resource
	GetScheduleWindow(ctx context.Context, resourceName, namespace, field string) (string, error)

	// PatchScheduleWindow sets a HH:MM field of a sleep schedule resource
	PatchScheduleWindow(ctx context.Context, resourceName, namespace, field, value string) error
}

// ScheduleResourceLister optionally implemented by a WorkloadController to
// enumerate the sleep schedule resources of a namespace
type ScheduleResourceLister interface {
	ListScheduleResources(ctx context.Context, namespace string) ([]string, error)
}
