package kube

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"kstatus/internal/kube/dto"
)

// projectMeta fills the fields every summary shares. The age is computed
// against now, which the caller takes once per response.
func projectMeta(m metav1.ObjectMeta, now time.Time) (dto.MetaDTO, error) {
	if m.Name == "" {
		return dto.MetaDTO{}, fmt.Errorf("%w: missing metadata.name", ErrMalformedRecord)
	}
	if m.CreationTimestamp.IsZero() {
		return dto.MetaDTO{}, fmt.Errorf("%w: %s has no metadata.creationTimestamp", ErrMalformedRecord, m.Name)
	}

	created := m.CreationTimestamp.Time
	return dto.MetaDTO{
		Name:        m.Name,
		Namespace:   m.Namespace,
		Labels:      copyMap(m.Labels),
		Annotations: copyMap(m.Annotations),
		CreatedAt:   created,
		AgeRelative: RelativeAge(created, now),
	}, nil
}

// copyMap never returns nil so labels and annotations always encode as {}.
func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
