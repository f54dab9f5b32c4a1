package kube

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"

	"kstatus/internal/kube/dto"
	"kstatus/internal/logging"
)

// stubAdapter serves canned records and applies field selectors the way the
// API server would for the fields used here.
type stubAdapter struct {
	pods         []corev1.Pod
	deployments  []appsv1.Deployment
	statefulSets []appsv1.StatefulSet
	jobs         []batchv1.Job
	namespaces   []corev1.Namespace
	events       []corev1.Event
	logs         []string
	err          error

	calls     atomic.Int32
	mu        sync.Mutex
	selectors []string
	inflight  atomic.Int32
	peak      atomic.Int32
	delay     time.Duration
}

func (s *stubAdapter) record(ctx context.Context, selector string) error {
	s.calls.Add(1)
	s.mu.Lock()
	s.selectors = append(s.selectors, selector)
	s.mu.Unlock()

	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubAdapter) ListPods(ctx context.Context, _, fs string) ([]corev1.Pod, error) {
	return s.pods, s.record(ctx, fs)
}

func (s *stubAdapter) ListDeployments(ctx context.Context, _, fs string) ([]appsv1.Deployment, error) {
	return s.deployments, s.record(ctx, fs)
}

func (s *stubAdapter) ListStatefulSets(ctx context.Context, _, fs string) ([]appsv1.StatefulSet, error) {
	return s.statefulSets, s.record(ctx, fs)
}

func (s *stubAdapter) ListJobs(ctx context.Context, _, fs string) ([]batchv1.Job, error) {
	return s.jobs, s.record(ctx, fs)
}

func (s *stubAdapter) ListNamespaces(ctx context.Context, fs string) ([]corev1.Namespace, error) {
	return s.namespaces, s.record(ctx, fs)
}

func (s *stubAdapter) ListEvents(ctx context.Context, _, fs string) ([]corev1.Event, error) {
	if err := s.record(ctx, fs); err != nil {
		return nil, err
	}
	sel, err := fields.ParseSelector(fs)
	if err != nil {
		return nil, err
	}
	var out []corev1.Event
	for _, e := range s.events {
		if sel.Matches(fields.Set{"involvedObject.name": e.InvolvedObject.Name}) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubAdapter) GetPodLogs(ctx context.Context, _, _ string, _ LogOptions) ([]string, error) {
	return s.logs, s.record(ctx, "")
}

func newTestPipeline(a Adapter, opts ...PipelineOption) *Pipeline {
	opts = append([]PipelineOption{WithClock(func() time.Time { return testNow })}, opts...)
	return NewPipeline(a, opts...)
}

func TestListPreservesUpstreamOrder(t *testing.T) {
	a := &stubAdapter{pods: []corev1.Pod{
		{ObjectMeta: testMeta("default", "zeta", time.Minute), Spec: corev1.PodSpec{Containers: []corev1.Container{{Image: "z"}}}},
		{ObjectMeta: testMeta("default", "alpha", time.Hour), Spec: corev1.PodSpec{Containers: []corev1.Container{{Image: "a"}}}},
	}}

	out, err := newTestPipeline(a).List(context.Background(), ListRequest{Kind: KindPods, Namespace: "default"})
	require.NoError(t, err)

	pods, ok := out.([]dto.PodSummaryDTO)
	require.True(t, ok)
	require.Len(t, pods, 2)
	assert.Equal(t, "zeta", pods[0].Name)
	assert.Equal(t, "alpha", pods[1].Name)
	assert.Equal(t, "1 minutes ago", pods[0].AgeRelative)
	assert.Equal(t, "1 hours ago", pods[1].AgeRelative)
}

func TestListEveryKind(t *testing.T) {
	a := &stubAdapter{
		pods:         []corev1.Pod{{ObjectMeta: testMeta("default", "p", time.Minute)}},
		deployments:  []appsv1.Deployment{{ObjectMeta: testMeta("default", "d", time.Minute)}},
		statefulSets: []appsv1.StatefulSet{{ObjectMeta: testMeta("default", "s", time.Minute)}},
		jobs:         []batchv1.Job{{ObjectMeta: testMeta("default", "j", time.Minute)}},
		namespaces:   []corev1.Namespace{{ObjectMeta: testMeta("", "default", time.Minute)}},
		events:       []corev1.Event{{ObjectMeta: testMeta("default", "e", time.Minute)}},
	}
	p := newTestPipeline(a)

	want := map[Kind]any{
		KindPods:         []dto.PodSummaryDTO{},
		KindDeployments:  []dto.DeploymentSummaryDTO{},
		KindStatefulSets: []dto.StatefulSetSummaryDTO{},
		KindJobs:         []dto.JobSummaryDTO{},
		KindNamespaces:   []dto.NamespaceSummaryDTO{},
		KindEvents:       []dto.EventSummaryDTO{},
	}
	for kind, typ := range want {
		t.Run(string(kind), func(t *testing.T) {
			out, err := p.List(context.Background(), ListRequest{Kind: kind, Namespace: "default"})
			require.NoError(t, err)
			assert.IsType(t, typ, out)
		})
	}
}

func TestListNamespacesNeedsNoNamespace(t *testing.T) {
	a := &stubAdapter{namespaces: []corev1.Namespace{{ObjectMeta: testMeta("", "default", time.Minute)}}}

	out, err := newTestPipeline(a).List(context.Background(), ListRequest{Kind: KindNamespaces})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestListValidation(t *testing.T) {
	tests := []struct {
		name string
		req  ListRequest
	}{
		{"empty namespace", ListRequest{Kind: KindPods}},
		{"bad namespace", ListRequest{Kind: KindPods, Namespace: "Not_A_Label"}},
		{"unknown kind", ListRequest{Kind: "secrets", Namespace: "default"}},
		{"bad selector", ListRequest{Kind: KindJobs, Namespace: "default", FieldSelector: "status.phase"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAdapter{}
			_, err := newTestPipeline(a).List(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err))
			assert.Zero(t, a.calls.Load())
		})
	}
}

func TestListSelectors(t *testing.T) {
	a := &stubAdapter{}
	p := newTestPipeline(a)

	_, err := p.List(context.Background(), ListRequest{Kind: KindPods, Namespace: "default"})
	require.NoError(t, err)
	_, err = p.List(context.Background(), ListRequest{Kind: KindPods, Namespace: "default", Name: "web-0"})
	require.NoError(t, err)
	_, err = p.List(context.Background(), ListRequest{Kind: KindPods, Namespace: "default", Name: "web-0", FieldSelector: "status.phase=Running"})
	require.NoError(t, err)

	require.Len(t, a.selectors, 3)
	assert.Equal(t, "", a.selectors[0])
	assert.Equal(t, "metadata.name=web-0", a.selectors[1])
	assert.Equal(t, "status.phase=Running,metadata.name=web-0", a.selectors[2])
}

func TestListMalformedRecordFailsWholeListing(t *testing.T) {
	a := &stubAdapter{deployments: []appsv1.Deployment{
		{ObjectMeta: testMeta("default", "good", time.Minute)},
		{ObjectMeta: metav1.ObjectMeta{Name: "no-timestamp", Namespace: "default"}},
		{ObjectMeta: testMeta("default", "also-good", time.Minute)},
	}}

	out, err := newTestPipeline(a).List(context.Background(), ListRequest{Kind: KindDeployments, Namespace: "default"})
	assert.Nil(t, out)
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "deployments item 1")
}

func TestListPropagatesUpstreamError(t *testing.T) {
	upstream := &UpstreamRejectedError{Code: 403, Reason: "Forbidden", Message: "nope"}
	a := &stubAdapter{err: upstream}

	out, err := newTestPipeline(a).List(context.Background(), ListRequest{Kind: KindJobs, Namespace: "default"})
	assert.Nil(t, out)

	var rejected *UpstreamRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, int32(403), rejected.Code)
}

func TestEvents(t *testing.T) {
	last := testNow.Add(-time.Minute)
	series := testNow.Add(-2 * time.Minute)
	a := &stubAdapter{events: []corev1.Event{
		{
			ObjectMeta:     testMeta("default", "my-pod.b", time.Minute),
			InvolvedObject: corev1.ObjectReference{Name: "my-pod"},
			EventTime:      metav1.NewMicroTime(series),
		},
		{
			ObjectMeta:     testMeta("default", "other.a", time.Minute),
			InvolvedObject: corev1.ObjectReference{Name: "other"},
		},
		{
			ObjectMeta:     testMeta("default", "my-pod.a", time.Minute),
			InvolvedObject: corev1.ObjectReference{Name: "my-pod"},
			LastTimestamp:  metav1.NewTime(last),
		},
	}}

	evs, err := newTestPipeline(a).Events(context.Background(), "default", "my-pod")
	require.NoError(t, err)
	require.Len(t, evs, 2)

	assert.Equal(t, []string{"involvedObject.name=my-pod"}, a.selectors)
	assert.Equal(t, "my-pod.b", evs[0].Name)
	assert.True(t, evs[0].Timestamp.Equal(series))
	assert.Equal(t, "my-pod.a", evs[1].Name)
	assert.True(t, evs[1].Timestamp.Equal(last))
}

func TestEventsValidation(t *testing.T) {
	a := &stubAdapter{}
	p := newTestPipeline(a)

	_, err := p.Events(context.Background(), "", "my-pod")
	assert.True(t, IsInvalidRequest(err))
	_, err = p.Events(context.Background(), "default", "")
	assert.True(t, IsInvalidRequest(err))
	assert.Zero(t, a.calls.Load())
}

func TestPodLogs(t *testing.T) {
	a := &stubAdapter{logs: []string{"starting", "listening on :8080"}}

	lines, err := newTestPipeline(a).PodLogs(context.Background(), "default", "web-0", LogOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2026-10-17T12:00:00Z starting",
		"2026-10-17T12:00:00Z listening on :8080",
	}, lines)
}

func TestPodLogsLogsPodName(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "debug", "text")
	require.NoError(t, err)

	a := &stubAdapter{logs: []string{"ready"}}
	_, err = newTestPipeline(a, WithLogger(log)).PodLogs(context.Background(), "default", "web-0", LogOptions{Container: "app"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "resource_name=web-0")
	assert.Contains(t, out, "namespace=default")
	assert.Contains(t, out, "container=app")
	assert.Contains(t, out, "lines=1")
}

func TestPodLogsValidation(t *testing.T) {
	tooMany := int64(MaxTailLines + 1)
	negative := int64(-1)

	tests := []struct {
		name string
		ns   string
		pod  string
		opts LogOptions
	}{
		{"no namespace", "", "web-0", LogOptions{}},
		{"no pod", "default", "", LogOptions{}},
		{"bad pod", "default", "Web_0", LogOptions{}},
		{"tail too large", "default", "web-0", LogOptions{TailLines: &tooMany}},
		{"tail negative", "default", "web-0", LogOptions{TailLines: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAdapter{}
			_, err := newTestPipeline(a).PodLogs(context.Background(), tt.ns, tt.pod, tt.opts)
			assert.True(t, IsInvalidRequest(err))
			assert.Zero(t, a.calls.Load())
		})
	}
}

func TestStatusFanOut(t *testing.T) {
	a := &stubAdapter{
		pods:  []corev1.Pod{{ObjectMeta: testMeta("default", "p", time.Minute)}},
		jobs:  []batchv1.Job{{ObjectMeta: testMeta("default", "j", time.Minute)}},
		delay: 20 * time.Millisecond,
	}

	out, err := newTestPipeline(a, WithStatusConcurrency(2)).Status(context.Background(), "default", nil)
	require.NoError(t, err)

	assert.Len(t, out, len(DefaultStatusKinds))
	assert.Len(t, out[KindPods], 1)
	assert.Len(t, out[KindJobs], 1)
	assert.Len(t, out[KindDeployments], 0)
	assert.Equal(t, int32(len(DefaultStatusKinds)), a.calls.Load())
	assert.LessOrEqual(t, a.peak.Load(), int32(2))
}

func TestStatusDeduplicatesKinds(t *testing.T) {
	a := &stubAdapter{}

	out, err := newTestPipeline(a).Status(context.Background(), "default", []Kind{KindPods, KindPods, KindJobs})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestStatusFailsAsAWhole(t *testing.T) {
	a := &stubAdapter{err: errors.New("boom")}

	out, err := newTestPipeline(a).Status(context.Background(), "default", []Kind{KindPods, KindJobs})
	assert.Nil(t, out)
	assert.Error(t, err)
}

func TestStatusValidatesBeforeCalling(t *testing.T) {
	a := &stubAdapter{}

	_, err := newTestPipeline(a).Status(context.Background(), "default", []Kind{KindPods, "secrets"})
	assert.True(t, IsInvalidRequest(err))
	assert.Zero(t, a.calls.Load())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Pods ")
	require.NoError(t, err)
	assert.Equal(t, KindPods, k)

	_, err = ParseKind("logs")
	assert.True(t, IsInvalidRequest(err))
}
