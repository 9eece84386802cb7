package k8s

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"trafficwaker/pkg/constants"
	"trafficwaker/pkg/interfaces"
)

func newDeployment(name string, replicas int32, labels map[string]string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "shop",
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{Replicas: &replicas},
		Status: appsv1.DeploymentStatus{
			Replicas: replicas,
		},
	}
}

func newSleepInfo(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "kube-green.com/v1alpha1",
		"kind":       "SleepInfo",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "shop",
		},
		"spec": map[string]interface{}{
			"weekdays": "1-5",
			"sleepAt":  "20:00",
			"wakeUpAt": "08:00",
		},
	}}
}

func newController(t *testing.T, selector string, objs ...runtime.Object) (*WorkloadController, *fake.Clientset, *dynamicfake.FakeDynamicClient) {
	t.Helper()
	client := fake.NewSimpleClientset(objs...)
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{constants.SleepInfoGVR: "SleepInfoList"},
		newSleepInfo("working-hours"))
	return NewWorkloadController(client, dyn, selector), client, dyn
}

func countUpdates(client *fake.Clientset) int {
	n := 0
	for _, action := range client.Actions() {
		if action.GetVerb() == "update" && action.GetResource().Resource == "deployments" {
			n++
		}
	}
	return n
}

func TestWorkloadController_ListWorkloads(t *testing.T) {
	asleep := newDeployment("api", 0, map[string]string{"tier": "web"})
	asleep.Annotations = map[string]string{constants.AnnotationReplicasBeforeSleep: "3"}
	ctrl, _, _ := newController(t, "tier=web",
		asleep,
		newDeployment("frontend", 2, map[string]string{"tier": "web"}),
		newDeployment("batch", 1, map[string]string{"tier": "jobs"}),
	)

	workloads, err := ctrl.ListWorkloads(context.Background(), "shop")
	require.NoError(t, err)
	require.Len(t, workloads, 2)

	byName := map[string]interfaces.WorkloadState{}
	for _, w := range workloads {
		byName[w.Name] = w
	}
	assert.True(t, byName["api"].Asleep())
	assert.Equal(t, 3, byName["api"].RestoreReplicas)
	assert.Equal(t, 2, byName["frontend"].DesiredReplicas)
	assert.Equal(t, 0, byName["frontend"].RestoreReplicas)
}

func TestWorkloadController_SetReplicasIdempotent(t *testing.T) {
	ctrl, client, _ := newController(t, "", newDeployment("api", 0, nil))
	ctx := context.Background()

	changed, err := ctrl.SetReplicas(ctx, "api", "shop", 1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ctrl.SetReplicas(ctx, "api", "shop", 1)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, 1, countUpdates(client), "repeated application issues at most one update")
}

func TestWorkloadController_SleepRecordsRestoreCount(t *testing.T) {
	ctrl, client, _ := newController(t, "", newDeployment("api", 3, nil))
	ctx := context.Background()

	changed, err := ctrl.SetReplicas(ctx, "api", "shop", 0)
	require.NoError(t, err)
	assert.True(t, changed)

	d, err := client.AppsV1().Deployments("shop").Get(ctx, "api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), *d.Spec.Replicas)
	assert.Equal(t, "3", d.Annotations[constants.AnnotationReplicasBeforeSleep])

	_, err = ctrl.SetReplicas(ctx, "api", "shop", 3)
	require.NoError(t, err)
	d, err = client.AppsV1().Deployments("shop").Get(ctx, "api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), *d.Spec.Replicas)
	assert.NotContains(t, d.Annotations, constants.AnnotationReplicasBeforeSleep)
}

func TestWorkloadController_SetReplicasErrors(t *testing.T) {
	ctrl, client, _ := newController(t, "", newDeployment("api", 1, nil))
	ctx := context.Background()

	_, err := ctrl.SetReplicas(ctx, "api", "shop", -1)
	assert.Error(t, err)

	_, err = ctrl.SetReplicas(ctx, "missing", "shop", 1)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	client.PrependReactor("update", "deployments", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("apiserver unavailable")
	})
	_, err = ctrl.SetReplicas(ctx, "api", "shop", 0)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestWorkloadController_ScheduleWindow(t *testing.T) {
	ctrl, _, _ := newController(t, "")
	ctx := context.Background()

	value, err := ctrl.GetScheduleWindow(ctx, "working-hours", "shop", constants.SleepInfoFieldWakeUpAt)
	require.NoError(t, err)
	assert.Equal(t, "08:00", value)

	require.NoError(t, ctrl.PatchScheduleWindow(ctx, "working-hours", "shop", constants.SleepInfoFieldWakeUpAt, "06:42"))

	value, err = ctrl.GetScheduleWindow(ctx, "working-hours", "shop", constants.SleepInfoFieldWakeUpAt)
	require.NoError(t, err)
	assert.Equal(t, "06:42", value)

	// other fields are untouched by the merge patch
	value, err = ctrl.GetScheduleWindow(ctx, "working-hours", "shop", constants.SleepInfoFieldSleepAt)
	require.NoError(t, err)
	assert.Equal(t, "20:00", value)

	assert.Error(t, ctrl.PatchScheduleWindow(ctx, "working-hours", "shop", constants.SleepInfoFieldSleepAt, "7pm"))

	_, err = ctrl.GetScheduleWindow(ctx, "missing", "shop", constants.SleepInfoFieldSleepAt)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	names, err := ctrl.ListScheduleResources(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"working-hours"}, names)
}
