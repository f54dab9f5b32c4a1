package kube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/util/validation"

	"kstatus/internal/kube/dto"
	"kstatus/internal/logging"
)

// Kind names a listable resource kind. The values double as URL segments.
type Kind string

const (
	KindPods         Kind = "pods"
	KindDeployments  Kind = "deployments"
	KindStatefulSets Kind = "statefulsets"
	KindJobs         Kind = "jobs"
	KindNamespaces   Kind = "namespaces"
	KindEvents       Kind = "events"

	// KindLogs only labels pod log fetches in metrics and logs; it cannot be
	// listed.
	KindLogs Kind = "logs"
)

const (
	DefaultStatusConcurrency = 4
	MaxTailLines             = 5000
)

// DefaultStatusKinds is what Status lists when the caller names no kinds.
var DefaultStatusKinds = []Kind{KindPods, KindDeployments, KindStatefulSets, KindJobs}

// ListRequest is built once per incoming call. Name, when set, is turned into
// a metadata.name field selector and AND-ed with FieldSelector.
type ListRequest struct {
	Kind          Kind
	Namespace     string
	Name          string
	FieldSelector string
}

func (r ListRequest) selector() (string, error) {
	var sels []fields.Selector
	if r.FieldSelector != "" {
		sel, err := fields.ParseSelector(r.FieldSelector)
		if err != nil {
			return "", invalid("fieldSelector", err.Error())
		}
		sels = append(sels, sel)
	}
	if r.Name != "" {
		sels = append(sels, fields.OneTermEqualSelector("metadata.name", r.Name))
	}
	if len(sels) == 0 {
		return "", nil
	}
	return fields.AndSelectors(sels...).String(), nil
}

// lister is the type-erased view of a kindSpec.
type lister interface {
	clusterScoped() bool
	list(ctx context.Context, a Adapter, namespace, selector string, now time.Time) (any, error)
}

// kindSpec ties an adapter call to the projector for its records.
type kindSpec[T, S any] struct {
	kind    Kind
	cluster bool
	fetch   func(a Adapter, ctx context.Context, namespace, fieldSelector string) ([]T, error)
	project func(item T, now time.Time) (S, error)
}

func (k kindSpec[T, S]) clusterScoped() bool { return k.cluster }

func (k kindSpec[T, S]) list(ctx context.Context, a Adapter, namespace, selector string, now time.Time) (any, error) {
	return k.run(ctx, a, namespace, selector, now)
}

// run projects every record or none: the first malformed record fails the
// whole listing.
func (k kindSpec[T, S]) run(ctx context.Context, a Adapter, namespace, selector string, now time.Time) ([]S, error) {
	items, err := k.fetch(a, ctx, namespace, selector)
	if err != nil {
		return nil, err
	}

	out := make([]S, 0, len(items))
	for i := range items {
		s, err := k.project(items[i], now)
		if err != nil {
			return nil, fmt.Errorf("%s item %d: %w", k.kind, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

var (
	podKind = kindSpec[corev1.Pod, dto.PodSummaryDTO]{
		kind:    KindPods,
		fetch:   Adapter.ListPods,
		project: projectPod,
	}
	deploymentKind = kindSpec[appsv1.Deployment, dto.DeploymentSummaryDTO]{
		kind:    KindDeployments,
		fetch:   Adapter.ListDeployments,
		project: projectDeployment,
	}
	statefulSetKind = kindSpec[appsv1.StatefulSet, dto.StatefulSetSummaryDTO]{
		kind:    KindStatefulSets,
		fetch:   Adapter.ListStatefulSets,
		project: projectStatefulSet,
	}
	jobKind = kindSpec[batchv1.Job, dto.JobSummaryDTO]{
		kind:    KindJobs,
		fetch:   Adapter.ListJobs,
		project: projectJob,
	}
	namespaceKind = kindSpec[corev1.Namespace, dto.NamespaceSummaryDTO]{
		kind:    KindNamespaces,
		cluster: true,
		fetch: func(a Adapter, ctx context.Context, _ string, fieldSelector string) ([]corev1.Namespace, error) {
			return a.ListNamespaces(ctx, fieldSelector)
		},
		project: projectNamespace,
	}
	eventKind = kindSpec[corev1.Event, dto.EventSummaryDTO]{
		kind:    KindEvents,
		fetch:   Adapter.ListEvents,
		project: projectEvent,
	}
)

var listers = map[Kind]lister{
	KindPods:         podKind,
	KindDeployments:  deploymentKind,
	KindStatefulSets: statefulSetKind,
	KindJobs:         jobKind,
	KindNamespaces:   namespaceKind,
	KindEvents:       eventKind,
}

// ParseKind accepts the URL segment of any listable kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := listers[k]; !ok {
		return "", invalid("kind", fmt.Sprintf("unknown resource kind %q", s))
	}
	return k, nil
}

// Pipeline validates requests, calls the Adapter and projects the results.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	adapter           Adapter
	now               func() time.Time
	statusConcurrency int
	log               *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithStatusConcurrency caps how many kinds Status lists at once.
func WithStatusConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.statusConcurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPipeline(a Adapter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		adapter:           a,
		now:               time.Now,
		statusConcurrency: DefaultStatusConcurrency,
		log:               logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// List returns a slice of the summary type for req.Kind, in upstream order.
func (p *Pipeline) List(ctx context.Context, req ListRequest) (any, error) {
	l, selector, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	out, err := l.list(ctx, p.adapter, req.Namespace, selector, p.now())
	if err != nil {
		return nil, err
	}
	p.log.Debug("listed resources",
		logging.ResourceType(string(req.Kind)),
		logging.Namespace(req.Namespace),
	)
	return out, nil
}

func (p *Pipeline) prepare(req ListRequest) (lister, string, error) {
	l, ok := listers[req.Kind]
	if !ok {
		return nil, "", invalid("kind", fmt.Sprintf("unknown resource kind %q", req.Kind))
	}
	if !l.clusterScoped() {
		if err := validateNamespace(req.Namespace); err != nil {
			return nil, "", err
		}
	}
	selector, err := req.selector()
	if err != nil {
		return nil, "", err
	}
	return l, selector, nil
}

// Events lists the events whose involvedObject.name is objectName. The filter
// runs on the API server and the upstream order is kept.
func (p *Pipeline) Events(ctx context.Context, namespace, objectName string) ([]dto.EventSummaryDTO, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if objectName == "" {
		return nil, invalid("name", "must not be empty")
	}

	selector := fields.OneTermEqualSelector("involvedObject.name", objectName).String()
	return eventKind.run(ctx, p.adapter, namespace, selector, p.now())
}

// PodLogs fetches a pod's log and prefixes every line with the time of this
// request. The log's own timestamps are not parsed.
func (p *Pipeline) PodLogs(ctx context.Context, namespace, podName string, opts LogOptions) ([]string, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if podName == "" {
		return nil, invalid("podName", "must not be empty")
	}
	if errs := validation.IsDNS1123Subdomain(podName); len(errs) > 0 {
		return nil, invalid("podName", strings.Join(errs, "; "))
	}
	if opts.TailLines != nil && (*opts.TailLines < 0 || *opts.TailLines > MaxTailLines) {
		return nil, invalid("tailLines", fmt.Sprintf("must be between 0 and %d", MaxTailLines))
	}

	lines, err := p.adapter.GetPodLogs(ctx, namespace, podName, opts)
	if err != nil {
		return nil, err
	}

	stamp := p.now().UTC().Format(time.RFC3339)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = stamp + " " + line
	}
	p.log.Debug("fetched pod logs",
		logging.Namespace(namespace),
		logging.ResourceName(podName),
		slog.String("container", opts.Container),
		slog.Int("lines", len(out)),
	)
	return out, nil
}

// Status lists several kinds of one namespace concurrently, at most
// statusConcurrency at a time. Like List it is all-or-nothing: the first
// failure cancels the remaining calls and is returned.
func (p *Pipeline) Status(ctx context.Context, namespace string, kinds []Kind) (map[Kind]any, error) {
	if len(kinds) == 0 {
		kinds = DefaultStatusKinds
	}
	kinds = uniqueKinds(kinds)

	ls := make([]lister, len(kinds))
	for i, k := range kinds {
		l, _, err := p.prepare(ListRequest{Kind: k, Namespace: namespace})
		if err != nil {
			return nil, err
		}
		ls[i] = l
	}

	now := p.now()
	results := make([]any, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.statusConcurrency)
	for i := range kinds {
		g.Go(func() error {
			r, err := ls[i].list(gctx, p.adapter, namespace, "", now)
			if err != nil {
				return fmt.Errorf("%s: %w", kinds[i], err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Kind]any, len(kinds))
	for i, k := range kinds {
		out[k] = results[i]
	}
	return out, nil
}

func uniqueKinds(kinds []Kind) []Kind {
	seen := make(map[Kind]struct{}, len(kinds))
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func validateNamespace(ns string) error {
	if ns == "" {
		return invalid("namespace", "must not be empty")
	}
	if errs := validation.IsDNS1123Label(ns); len(errs) > 0 {
		return invalid("namespace", strings.Join(errs, "; "))
	}
	return nil
}
