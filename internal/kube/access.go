package kube

import (
	"context"
	"fmt"

	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes"
)

// kindResources maps each listable kind onto the resource a list call hits.
var kindResources = map[Kind]schema.GroupResource{
	KindPods:         {Resource: "pods"},
	KindDeployments:  {Group: "apps", Resource: "deployments"},
	KindStatefulSets: {Group: "apps", Resource: "statefulsets"},
	KindJobs:         {Group: "batch", Resource: "jobs"},
	KindNamespaces:   {Resource: "namespaces"},
	KindEvents:       {Resource: "events"},
}

// AccessReport is the API server's answer for one kind.
type AccessReport struct {
	Kind    Kind
	Allowed bool
	Reason  string
}

// CheckListAccess asks the API server whether the service account may list
// each kind. An empty namespace asks about all namespaces. Pod logs are
// checked as the pods/log subresource under KindLogs.
func CheckListAccess(ctx context.Context, cs kubernetes.Interface, namespace string, kinds []Kind) ([]AccessReport, error) {
	out := make([]AccessReport, 0, len(kinds))
	for _, k := range kinds {
		attrs := &authorizationv1.ResourceAttributes{Verb: "list"}
		switch gr, ok := kindResources[k]; {
		case k == KindLogs:
			attrs.Verb = "get"
			attrs.Resource = "pods"
			attrs.Subresource = "log"
		case ok:
			attrs.Group = gr.Group
			attrs.Resource = gr.Resource
		default:
			return nil, invalid("kind", fmt.Sprintf("unknown resource kind %q", k))
		}
		if k != KindNamespaces {
			attrs.Namespace = namespace
		}

		review := &authorizationv1.SelfSubjectAccessReview{
			Spec: authorizationv1.SelfSubjectAccessReviewSpec{ResourceAttributes: attrs},
		}
		res, err := cs.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
		if err != nil {
			return nil, classify("access review "+string(k), err)
		}
		out = append(out, AccessReport{
			Kind:    k,
			Allowed: res.Status.Allowed,
			Reason:  res.Status.Reason,
		})
	}
	return out, nil
}
