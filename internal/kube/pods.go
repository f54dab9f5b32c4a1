package kube

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListPods(ctx context.Context, namespace, fieldSelector string) ([]corev1.Pod, error) {
	var items []corev1.Pod
	err := a.call(ctx, KindPods, namespace, func(ctx context.Context) error {
		pods, err := a.clientset.CoreV1().Pods(namespace).List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = pods.Items
		return nil
	})
	return items, err
}

func projectPod(p corev1.Pod, now time.Time) (dto.PodSummaryDTO, error) {
	meta, err := projectMeta(p.ObjectMeta, now)
	if err != nil {
		return dto.PodSummaryDTO{}, err
	}

	image := ""
	if len(p.Spec.Containers) > 0 {
		image = p.Spec.Containers[0].Image
	}

	return dto.PodSummaryDTO{
		MetaDTO:      meta,
		PrimaryImage: image,
	}, nil
}
