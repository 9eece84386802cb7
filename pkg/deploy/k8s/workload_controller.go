package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"

	"trafficwaker/pkg/constants"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
	"trafficwaker/pkg/schedule"
)

// WorkloadController scales Deployments and patches kube-green SleepInfo resources
type WorkloadController struct {
	client   kubernetes.Interface
	dynamic  dynamic.Interface
	selector string
}

// NewWorkloadController creates a workload controller.
// selector optionally restricts ListWorkloads to matching Deployments.
func NewWorkloadController(client kubernetes.Interface, dynamicClient dynamic.Interface, selector string) *WorkloadController {
	return &WorkloadController{
		client:   client,
		dynamic:  dynamicClient,
		selector: selector,
	}
}

var _ interfaces.WorkloadController = (*WorkloadController)(nil)

// ListWorkloads lists Deployments in the namespace
func (c *WorkloadController) ListWorkloads(ctx context.Context, namespace string) ([]interfaces.WorkloadState, error) {
	list, err := c.client.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: c.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list deployments in %s: %v", interfaces.ErrBackendUnavailable, namespace, err)
	}

	workloads := make([]interfaces.WorkloadState, 0, len(list.Items))
	for i := range list.Items {
		workloads = append(workloads, workloadState(&list.Items[i]))
	}
	return workloads, nil
}

// SetReplicas sets spec.replicas. Scaling a running Deployment to zero records
// the previous count in an annotation so a later wake can restore it.
func (c *WorkloadController) SetReplicas(ctx context.Context, name, namespace string, replicas int) (bool, error) {
	if replicas < 0 {
		return false, fmt.Errorf("replicas cannot be negative")
	}

	deployments := c.client.AppsV1().Deployments(namespace)
	changed := false
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deployment, err := deployments.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}

		current := desiredReplicas(deployment)
		if current == replicas {
			changed = false
			return nil
		}

		if replicas == 0 {
			if deployment.Annotations == nil {
				deployment.Annotations = make(map[string]string)
			}
			deployment.Annotations[constants.AnnotationReplicasBeforeSleep] = strconv.Itoa(current)
		} else {
			delete(deployment.Annotations, constants.AnnotationReplicasBeforeSleep)
		}

		r := int32(replicas)
		deployment.Spec.Replicas = &r
		if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: scale deployment %s/%s to %d: %v",
			interfaces.ErrBackendUnavailable, namespace, name, replicas, err)
	}

	if changed {
		logger.InfoCtx(ctx, "scaled deployment %s/%s to %d replicas", namespace, name, replicas)
	}
	return changed, nil
}

// GetScheduleWindow reads spec.<field> of a SleepInfo
func (c *WorkloadController) GetScheduleWindow(ctx context.Context, resourceName, namespace, field string) (string, error) {
	obj, err := c.dynamic.Resource(constants.SleepInfoGVR).Namespace(namespace).Get(ctx, resourceName, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: get sleepinfo %s/%s: %v", interfaces.ErrBackendUnavailable, namespace, resourceName, err)
	}
	value, _, err := unstructured.NestedString(obj.Object, "spec", field)
	if err != nil {
		return "", fmt.Errorf("read sleepinfo %s/%s spec.%s: %w", namespace, resourceName, field, err)
	}
	return value, nil
}

// PatchScheduleWindow sets spec.<field> of a SleepInfo with a merge patch
func (c *WorkloadController) PatchScheduleWindow(ctx context.Context, resourceName, namespace, field, value string) error {
	if _, err := schedule.ParseTimeOfDay(value); err != nil {
		return err
	}

	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			field: value,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build patch: %w", err)
	}

	_, err = c.dynamic.Resource(constants.SleepInfoGVR).Namespace(namespace).
		Patch(ctx, resourceName, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("%w: patch sleepinfo %s/%s spec.%s: %v",
			interfaces.ErrBackendUnavailable, namespace, resourceName, field, err)
	}

	logger.InfoCtx(ctx, "patched sleepinfo %s/%s: %s=%s", namespace, resourceName, field, value)
	return nil
}

// ListScheduleResources lists SleepInfo names in the namespace
func (c *WorkloadController) ListScheduleResources(ctx context.Context, namespace string) ([]string, error) {
	list, err := c.dynamic.Resource(constants.SleepInfoGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list sleepinfos in %s: %v", interfaces.ErrBackendUnavailable, namespace, err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	return names, nil
}

func workloadState(d *appsv1.Deployment) interfaces.WorkloadState {
	state := interfaces.WorkloadState{
		Name:            d.Name,
		Namespace:       d.Namespace,
		DesiredReplicas: desiredReplicas(d),
		CurrentReplicas: int(d.Status.Replicas),
	}
	if v, ok := d.Annotations[constants.AnnotationReplicasBeforeSleep]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			state.RestoreReplicas = n
		}
	}
	return state
}

// desiredReplicas defaults a nil spec.replicas to 1, as the API server does
func desiredReplicas(d *appsv1.Deployment) int {
	if d.Spec.Replicas == nil {
		return 1
	}
	return int(*d.Spec.Replicas)
}
