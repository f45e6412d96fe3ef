package k8sscheduler

import (
	"k8s.io/client-go/kubernetes"
)

// Client drives worker Pods on one Kubernetes cluster. It satisfies
// scaler.Scheduler.
type Client struct {
	clientset *kubernetes.Clientset
	namespace string
}

// NewClient builds a Client from cfg, resolving cluster credentials the way
// cloud/kyma/client.go's NewClient does (in-cluster, then kubeconfig file).
func NewClient(cfg Config) (*Client, error) {
	restCfg, err := restConfigFor(cfg.KubeconfigPath)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, err
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Client{clientset: clientset, namespace: ns}, nil
}
