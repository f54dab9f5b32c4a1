package kube

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListEvents(ctx context.Context, namespace, fieldSelector string) ([]corev1.Event, error) {
	var items []corev1.Event
	err := a.call(ctx, KindEvents, namespace, func(ctx context.Context) error {
		evs, err := a.clientset.CoreV1().Events(namespace).List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = evs.Items
		return nil
	})
	return items, err
}

func projectEvent(e corev1.Event, now time.Time) (dto.EventSummaryDTO, error) {
	meta, err := projectMeta(e.ObjectMeta, now)
	if err != nil {
		return dto.EventSummaryDTO{}, err
	}

	return dto.EventSummaryDTO{
		MetaDTO:            meta,
		Type:               e.Type,
		Reason:             e.Reason,
		Message:            e.Message,
		InvolvedObjectName: e.InvolvedObject.Name,
		Timestamp:          eventTimestamp(e),
	}, nil
}

// eventTimestamp prefers lastTimestamp (core/v1 events) and falls back to
// eventTime (events.k8s.io series). Nil when the event carries neither.
func eventTimestamp(e corev1.Event) *time.Time {
	if !e.LastTimestamp.IsZero() {
		t := e.LastTimestamp.Time
		return &t
	}
	if !e.EventTime.IsZero() {
		t := e.EventTime.Time
		return &t
	}
	return nil
}
