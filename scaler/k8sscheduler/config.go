// Package k8sscheduler implements scaler.Scheduler against a bare Kubernetes
// cluster: every worker is one Pod, scheduled onto a specific node by name
// (the scaler already picked the node via its own bin-packing arena, so the
// Pod only needs a nodeName pin, not its own scheduler decision). Grounded
// on cloud/kyma/client.go's clientset/kubeconfig bootstrap, generalized from
// that package's Deployment+Service+APIRule application stack down to a
// single Pod per worker.
package k8sscheduler

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Config configures a Client's cluster connection.
type Config struct {
	// KubeconfigPath is the path to a kubeconfig file. If empty, the client
	// tries in-cluster config first, then ~/.kube/config.
	KubeconfigPath string

	// Namespace is the Kubernetes namespace every worker Pod is created in.
	Namespace string
}

// restConfigFor resolves a *rest.Config the same way cloud/kyma/client.go's
// getKubeConfig does: in-cluster first, then the configured or default
// kubeconfig file.
func restConfigFor(kubeconfigPath string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}
	if _, err := os.Stat(kubeconfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("kubeconfig not found: %s", kubeconfigPath)
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("build config from kubeconfig: %w", err)
	}
	return cfg, nil
}
