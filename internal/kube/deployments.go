package kube

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListDeployments(ctx context.Context, namespace, fieldSelector string) ([]appsv1.Deployment, error) {
	var items []appsv1.Deployment
	err := a.call(ctx, KindDeployments, namespace, func(ctx context.Context) error {
		deps, err := a.clientset.AppsV1().Deployments(namespace).List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = deps.Items
		return nil
	})
	return items, err
}

func projectDeployment(d appsv1.Deployment, now time.Time) (dto.DeploymentSummaryDTO, error) {
	meta, err := projectMeta(d.ObjectMeta, now)
	if err != nil {
		return dto.DeploymentSummaryDTO{}, err
	}

	return dto.DeploymentSummaryDTO{
		MetaDTO:           meta,
		DesiredReplicas:   desiredReplicas(d.Spec.Replicas),
		AvailableReplicas: d.Status.AvailableReplicas,
	}, nil
}

// desiredReplicas applies the API server's default of 1 when spec.replicas is
// unset.
func desiredReplicas(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}
