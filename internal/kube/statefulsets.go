package kube

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListStatefulSets(ctx context.Context, namespace, fieldSelector string) ([]appsv1.StatefulSet, error) {
	var items []appsv1.StatefulSet
	err := a.call(ctx, KindStatefulSets, namespace, func(ctx context.Context) error {
		sets, err := a.clientset.AppsV1().StatefulSets(namespace).List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = sets.Items
		return nil
	})
	return items, err
}

func projectStatefulSet(ss appsv1.StatefulSet, now time.Time) (dto.StatefulSetSummaryDTO, error) {
	meta, err := projectMeta(ss.ObjectMeta, now)
	if err != nil {
		return dto.StatefulSetSummaryDTO{}, err
	}

	return dto.StatefulSetSummaryDTO{
		MetaDTO:         meta,
		DesiredReplicas: desiredReplicas(ss.Spec.Replicas),
		CurrentReplicas: ss.Status.CurrentReplicas,
	}, nil
}
