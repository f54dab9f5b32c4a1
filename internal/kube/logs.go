package kube

import (
	"context"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// GetPodLogs fetches the current log of one container in a single request and
// splits it into lines. The log is never followed.
func (a *ClientAdapter) GetPodLogs(ctx context.Context, namespace, podName string, opts LogOptions) ([]string, error) {
	var lines []string
	err := a.call(ctx, KindLogs, namespace, func(ctx context.Context) error {
		req := a.clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
			Container: opts.Container,
			TailLines: opts.TailLines,
		})
		raw, err := req.DoRaw(ctx)
		if err != nil {
			return err
		}
		lines = splitLines(string(raw))
		return nil
	})
	return lines, err
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
