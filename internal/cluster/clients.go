package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Options selects how the API server session is built.
type Options struct {
	// Kubeconfig is an explicit kubeconfig path. When empty, the in-cluster
	// service account is tried first and then the default loading chain
	// (KUBECONFIG, ~/.kube/config).
	Kubeconfig string
	// Context overrides the kubeconfig's current-context.
	Context string

	QPS       float32
	Burst     int
	UserAgent string
}

// Clients is the process-wide session with the API server. It is built once
// at startup and shared read-only by every request; the clientset is safe for
// concurrent use and pools its connections.
type Clients struct {
	RestConfig *rest.Config
	Clientset  kubernetes.Interface
	// Source describes where the configuration came from, for startup logs.
	Source string
}

// NewClients builds the rest config and clientset.
func NewClients(opts Options) (*Clients, error) {
	restCfg, source, err := restConfig(opts)
	if err != nil {
		return nil, err
	}

	if opts.QPS > 0 {
		restCfg.QPS = opts.QPS
	}
	if opts.Burst > 0 {
		restCfg.Burst = opts.Burst
	}
	if opts.UserAgent != "" {
		restCfg.UserAgent = opts.UserAgent
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("new clientset: %w", err)
	}

	return &Clients{
		RestConfig: restCfg,
		Clientset:  clientset,
		Source:     source,
	}, nil
}

func restConfig(opts Options) (*rest.Config, string, error) {
	if opts.Kubeconfig == "" && opts.Context == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			return cfg, "in-cluster", nil
		}
		if !errors.Is(err, rest.ErrNotInCluster) {
			return nil, "", fmt.Errorf("in-cluster config: %w", err)
		}
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if opts.Kubeconfig != "" {
		loadingRules.ExplicitPath = opts.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: opts.Context}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	cfg, err := cc.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("build rest config: %w", err)
	}

	source := "kubeconfig"
	if path := firstExisting(loadingRules.GetLoadingPrecedence()); path != "" {
		source = "kubeconfig " + path
	}
	return cfg, source, nil
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Ping asks the API server for its version. It is the only way to know the
// session actually works, since building the clientset never dials. The
// request is bound to ctx and is abandoned when ctx ends.
func (c *Clients) Ping(ctx context.Context) (string, error) {
	rc := c.Clientset.Discovery().RESTClient()
	if rc == nil {
		return "", errors.New("server version: discovery client has no REST transport")
	}

	body, err := rc.Get().AbsPath("/version").Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	var info version.Info
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decode server version: %w", err)
	}
	return info.GitVersion, nil
}
