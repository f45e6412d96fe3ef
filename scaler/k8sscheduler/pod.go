package k8sscheduler

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/scaler"
)

const (
	labelCluster = "thorium.io/cluster"
	labelWorker  = "thorium.io/worker"
	labelScaler  = "thorium.io/scaler"
)

// Spawn creates (or re-observes) a Pod named s.Name on node, running img's
// container with img.Resources translated into Kubernetes resource
// requests. Pod name collisions (a retried spawn of an already-created
// worker) are treated as success, since worker names are deduplicated by
// construction.
func (c *Client) Spawn(ctx context.Context, node string, s scaler.Spawned, img model.Image) error {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.Name,
			Namespace: c.namespace,
			Labels: map[string]string{
				labelCluster: s.Cluster,
				labelWorker:  s.Name,
				labelScaler:  string(model.ScalerK8s),
			},
		},
		Spec: corev1.PodSpec{
			NodeName:      node,
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:       "worker",
					Image:      img.Image,
					Command:    img.Entrypoint,
					Args:       img.Cmd,
					Env:        envVars(identityEnv(s), img.Env),
					Resources:  resourceRequirements(img.Resources),
					WorkingDir: "/thorium",
				},
			},
		},
	}

	_, err := c.clientset.CoreV1().Pods(c.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return classify(err)
}

// Delete removes the Pod backing worker name, tolerating one that's
// already gone.
func (c *Client) Delete(ctx context.Context, cluster, name string) error {
	err := c.clientset.CoreV1().Pods(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return classify(err)
}

// ListManaged lists every Pod labelled with cluster, translating Kubernetes
// phases into scaler.ManagedWorkerPhase for the clear-terminal pass.
func (c *Client) ListManaged(ctx context.Context, cluster string) ([]scaler.ManagedWorker, error) {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", labelCluster, cluster),
	})
	if err != nil {
		return nil, classify(err)
	}

	out := make([]scaler.ManagedWorker, 0, len(pods.Items))
	for _, p := range pods.Items {
		out = append(out, scaler.ManagedWorker{
			Name:  p.Name,
			Node:  p.Spec.NodeName,
			Phase: podPhase(p.Status.Phase),
		})
	}
	return out, nil
}

func podPhase(p corev1.PodPhase) scaler.ManagedWorkerPhase {
	switch p {
	case corev1.PodSucceeded:
		return scaler.ManagedSucceeded
	case corev1.PodFailed:
		return scaler.ManagedFailed
	case corev1.PodRunning, corev1.PodPending:
		return scaler.ManagedRunning
	default:
		return scaler.ManagedUnknown
	}
}

// identityEnv mirrors the THORIUM_* identity variables the reactor-driven
// launchers (baremetal, windows, kvm) pass their agent processes, so
// cmd/thorium-agent can resolve its own identity the same way regardless
// of which backend spawned it.
func identityEnv(s scaler.Spawned) map[string]string {
	return map[string]string{
		"THORIUM_WORKER_NAME": s.Name,
		"THORIUM_CLUSTER":     s.Cluster,
		"THORIUM_NODE":        s.Node,
		"THORIUM_GROUP":       s.Req.Group,
		"THORIUM_PIPELINE":    s.Req.Pipeline,
		"THORIUM_STAGE":       s.Req.Stage,
		"THORIUM_USER":        s.Req.User,
		"THORIUM_POOL":        string(s.Pool),
	}
}

func envVars(sets ...map[string]string) []corev1.EnvVar {
	merged := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	out := make([]corev1.EnvVar, 0, len(merged))
	for k, v := range merged {
		out = append(out, corev1.EnvVar{Name: k, Value: v})
	}
	return out
}

func resourceRequirements(r model.Resources) corev1.ResourceRequirements {
	list := corev1.ResourceList{
		corev1.ResourceCPU:              *resource.NewMilliQuantity(r.CPUMilli, resource.DecimalSI),
		corev1.ResourceMemory:           *resource.NewQuantity(r.MemoryMiB*1024*1024, resource.BinarySI),
		corev1.ResourceEphemeralStorage: *resource.NewQuantity(r.EphemeralMiB*1024*1024, resource.BinarySI),
	}
	if r.NvidiaGPU > 0 {
		list["nvidia.com/gpu"] = *resource.NewQuantity(r.NvidiaGPU, resource.DecimalSI)
	}
	if r.AMDGpu > 0 {
		list["amd.com/gpu"] = *resource.NewQuantity(r.AMDGpu, resource.DecimalSI)
	}
	return corev1.ResourceRequirements{Requests: list, Limits: list}
}
