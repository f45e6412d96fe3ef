package k8sscheduler

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/scaler"
)

func newTestClient() *Client {
	return &Client{clientset: fake.NewSimpleClientset(), namespace: "thorium"}
}

func TestSpawnCreatesPodPinnedToNode(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	img := model.Image{
		Image:     "thorium/strings:latest",
		Resources: model.Resources{CPUMilli: 500, MemoryMiB: 256},
	}
	sp := scaler.Spawned{Cluster: "prod", Name: "triage-unpack-ab12cd34"}

	require.NoError(t, c.Spawn(ctx, "node-1", sp, img))

	pod, err := c.clientset.CoreV1().Pods("thorium").Get(ctx, sp.Name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "node-1", pod.Spec.NodeName)
	assert.Equal(t, "prod", pod.Labels[labelCluster])
}

func TestSpawnTwiceIsIdempotent(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()
	img := model.Image{Image: "thorium/strings:latest"}
	sp := scaler.Spawned{Cluster: "prod", Name: "dup-worker"}

	require.NoError(t, c.Spawn(ctx, "node-1", sp, img))
	require.NoError(t, c.Spawn(ctx, "node-1", sp, img), "re-spawning the same worker name must not error")
}

func TestDeleteToleratesMissingPod(t *testing.T) {
	c := newTestClient()
	assert.NoError(t, c.Delete(context.Background(), "prod", "never-existed"))
}

func TestListManagedTranslatesPhases(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	mk := func(name string, phase corev1.PodPhase) {
		_, err := c.clientset.CoreV1().Pods("thorium").Create(ctx, &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: name, Labels: map[string]string{labelCluster: "prod"}},
			Status:     corev1.PodStatus{Phase: phase},
		}, metav1.CreateOptions{})
		require.NoError(t, err)
	}
	mk("w1", corev1.PodRunning)
	mk("w2", corev1.PodSucceeded)
	mk("w3", corev1.PodFailed)

	managed, err := c.ListManaged(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, managed, 3)

	byName := map[string]scaler.ManagedWorkerPhase{}
	for _, m := range managed {
		byName[m.Name] = m.Phase
	}
	assert.Equal(t, scaler.ManagedRunning, byName["w1"])
	assert.Equal(t, scaler.ManagedSucceeded, byName["w2"])
	assert.Equal(t, scaler.ManagedFailed, byName["w3"])
	assert.True(t, byName["w2"].Terminal())
}
