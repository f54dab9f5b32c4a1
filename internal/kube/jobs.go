package kube

import (
	"context"
	"time"

	batchv1 "k8s.io/api/batch/v1"

	"kstatus/internal/kube/dto"
)

func (a *ClientAdapter) ListJobs(ctx context.Context, namespace, fieldSelector string) ([]batchv1.Job, error) {
	var items []batchv1.Job
	err := a.call(ctx, KindJobs, namespace, func(ctx context.Context) error {
		jobs, err := a.clientset.BatchV1().Jobs(namespace).List(ctx, listOptions(fieldSelector))
		if err != nil {
			return err
		}
		items = jobs.Items
		return nil
	})
	return items, err
}

func projectJob(job batchv1.Job, now time.Time) (dto.JobSummaryDTO, error) {
	meta, err := projectMeta(job.ObjectMeta, now)
	if err != nil {
		return dto.JobSummaryDTO{}, err
	}

	return dto.JobSummaryDTO{
		MetaDTO:     meta,
		Completions: copyInt32(job.Spec.Completions),
		Parallelism: copyInt32(job.Spec.Parallelism),
	}, nil
}

func copyInt32(p *int32) *int32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
