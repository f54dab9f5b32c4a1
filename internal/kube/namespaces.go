package kube

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListNamespaces(ctx context.Context, fieldSelector string) ([]corev1.Namespace, error) {
	var items []corev1.Namespace
	err := a.call(ctx, KindNamespaces, "", func(ctx context.Context) error {
		nsList, err := a.clientset.CoreV1().Namespaces().List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = nsList.Items
		return nil
	})
	return items, err
}

func projectNamespace(ns corev1.Namespace, now time.Time) (dto.NamespaceSummaryDTO, error) {
	meta, err := projectMeta(ns.ObjectMeta, now)
	if err != nil {
		return dto.NamespaceSummaryDTO{}, err
	}

	return dto.NamespaceSummaryDTO{
		MetaDTO: meta,
		Phase:   string(ns.Status.Phase),
	}, nil
}
