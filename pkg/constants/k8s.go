package constants

import "k8s.io/apimachinery/pkg/runtime/schema"

// K8s label and annotation keys
const (
	LabelManagedBy = "app.kubernetes.io/managed-by" // Manager identifier

	// AnnotationReplicasBeforeSleep replica count recorded when the controller scales a workload to zero
	AnnotationReplicasBeforeSleep = "trafficwaker.io/replicas-before-sleep"

	ManagedByTrafficWaker = "trafficwaker"
)

// SleepInfoGVR kube-green SleepInfo custom resource
var SleepInfoGVR = schema.GroupVersionResource{
	Group:    "kube-green.com",
	Version:  "v1alpha1",
	Resource: "sleepinfos",
}

// SleepInfo spec fields
const (
	SleepInfoFieldWeekdays = "weekdays"
	SleepInfoFieldSleepAt  = "sleepAt"
	SleepInfoFieldWakeUpAt = "wakeUpAt"
	SleepInfoFieldTimeZone = "timeZone"
)

// Defaults applied when a SleepInfo omits a time field
const (
	DefaultSleepAt  = "00:00"
	DefaultWakeUpAt = "09:00"
)

// Reconcile modes
const (
	ModeReplicas      = "replicas"       // scale Deployments directly
	ModeSchedulePatch = "schedule-patch" // shift SleepInfo sleepAt/wakeUpAt and let kube-green act
)
