package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/greenops/greenops-advisor/pkg/converter"
	"github.com/greenops/greenops-advisor/pkg/models"
)

// MetricsServerSource reads instant usage from the in-cluster metrics
// API. It carries no cost or energy exporters, so cost is derived from
// the allocation rates and carbon stays zero.
type MetricsServerSource struct {
	clientset     kubernetes.Interface
	metricsClient metricsv.Interface
}

func NewMetricsServerSource(clientset kubernetes.Interface, metricsClient metricsv.Interface) *MetricsServerSource {
	return &MetricsServerSource{
		clientset:     clientset,
		metricsClient: metricsClient,
	}
}

// Collect aggregates requests and instant usage across the workload's
// pods. Pods are matched by name prefix, the same convention the
// monitoring queries use.
func (m *MetricsServerSource) Collect(ctx context.Context, workload *models.Workload, window time.Duration) (*models.UsageSample, error) {
	pods, err := m.clientset.CoreV1().Pods(workload.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	podMetrics, err := m.metricsClient.MetricsV1beta1().PodMetricses(workload.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod metrics: %w", err)
	}

	sample := &models.UsageSample{
		Workload:    *workload,
		Window:      window,
		CollectedAt: time.Now(),
	}

	matched := 0
	for _, pod := range pods.Items {
		if !strings.HasPrefix(pod.Name, workload.Name) {
			continue
		}
		matched++
		for _, container := range pod.Spec.Containers {
			if cpu, ok := container.Resources.Requests[corev1.ResourceCPU]; ok {
				sample.CPURequested += converter.CoresFromCPUString(cpu.String())
			}
			if mem, ok := container.Resources.Requests[corev1.ResourceMemory]; ok {
				sample.MemoryRequested += converter.GBFromMemString(mem.String())
			}
		}
	}
	if matched == 0 {
		return nil, fmt.Errorf("no pods found for workload %s/%s", workload.Namespace, workload.Name)
	}

	for _, pm := range podMetrics.Items {
		if !strings.HasPrefix(pm.Name, workload.Name) {
			continue
		}
		for _, container := range pm.Containers {
			cpu := container.Usage[corev1.ResourceCPU]
			mem := container.Usage[corev1.ResourceMemory]
			sample.CPUUsed += converter.CoresFromCPUString(cpu.String())
			sample.MemoryUsed += converter.GBFromMemString(mem.String())
		}
	}

	sample.CurrentCost = (sample.CPURequested*cpuCostPerCoreHour +
		sample.MemoryRequested*memCostPerGBHour) * hoursPerMonth

	return sample, nil
}

func (m *MetricsServerSource) IsAvailable(ctx context.Context) bool {
	_, err := m.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	return err == nil
}

func (m *MetricsServerSource) Name() string {
	return "metrics-server"
}
