package kube

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kstatus/internal/cluster"
	"kstatus/internal/logging"
	"kstatus/internal/metrics"
)

const (
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxInFlight     = 64
)

// LogOptions narrows a pod log fetch.
type LogOptions struct {
	Container string
	TailLines *int64
}

// Adapter is the read-only view of the API server used by the Pipeline. Every
// method performs a single round trip and returns the records in the order
// the API server sent them.
type Adapter interface {
	ListPods(ctx context.Context, namespace, fieldSelector string) ([]corev1.Pod, error)
	ListDeployments(ctx context.Context, namespace, fieldSelector string) ([]appsv1.Deployment, error)
	ListStatefulSets(ctx context.Context, namespace, fieldSelector string) ([]appsv1.StatefulSet, error)
	ListJobs(ctx context.Context, namespace, fieldSelector string) ([]batchv1.Job, error)
	ListNamespaces(ctx context.Context, fieldSelector string) ([]corev1.Namespace, error)
	ListEvents(ctx context.Context, namespace, fieldSelector string) ([]corev1.Event, error)
	GetPodLogs(ctx context.Context, namespace, podName string, opts LogOptions) ([]string, error)
}

// AdapterOptions tunes a ClientAdapter. Zero values fall back to the defaults.
type AdapterOptions struct {
	Timeout     time.Duration
	MaxInFlight int64
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// ClientAdapter implements Adapter on top of a clientset.
type ClientAdapter struct {
	clientset kubernetes.Interface
	timeout   time.Duration
	inflight  *semaphore.Weighted
	metrics   *metrics.Metrics
	log       *slog.Logger
}

var _ Adapter = (*ClientAdapter)(nil)

func NewAdapter(c *cluster.Clients, opts AdapterOptions) *ClientAdapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultUpstreamTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &ClientAdapter{
		clientset: c.Clientset,
		timeout:   opts.Timeout,
		inflight:  semaphore.NewWeighted(opts.MaxInFlight),
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

// call runs fn under the upstream timeout and the in-flight cap. The timeout
// covers the wait for a slot as well as the round trip itself, and both are
// cut short when the caller's context ends.
func (a *ClientAdapter) call(ctx context.Context, kind Kind, namespace string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	op := "list " + string(kind)
	if kind == KindLogs {
		op = "get pod logs"
	}

	if err := a.inflight.Acquire(ctx, 1); err != nil {
		a.metrics.ObserveUpstream(string(kind), metrics.ResultUnavailable, 0)
		return classify(op, err)
	}
	defer a.inflight.Release(1)
	defer a.metrics.UpstreamStarted()()

	start := time.Now()
	err := classify(op, fn(ctx))
	elapsed := time.Since(start)

	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		result = metrics.ResultUnavailable
	case err != nil:
		result = metrics.ResultRejected
	}
	a.metrics.ObserveUpstream(string(kind), result, elapsed)

	a.log.Debug("upstream call",
		logging.Operation(op),
		logging.Namespace(namespace),
		slog.String(logging.KeyStatus, result),
		slog.Duration(logging.KeyDuration, elapsed),
	)
	return err
}

func listOptions(fieldSelector string) metav1.ListOptions {
	return metav1.ListOptions{FieldSelector: fieldSelector}
}
