package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/greenops/greenops-advisor/pkg/models"
)

const (
	cpuCostPerCoreHour = 0.02
	memCostPerGBHour   = 0.005
	hoursPerMonth      = 720

	// Grid average when no regional figure is configured.
	defaultCarbonIntensity = 475

	joulesPerKWh = 3_600_000
)

// PrometheusSource aggregates usage, cost, and energy for a workload from
// a Prometheus that scrapes cAdvisor, kube-state-metrics, and Kepler.
type PrometheusSource struct {
	client          v1.API
	url             string
	carbonIntensity float64
}

func NewPrometheusSource(url string, carbonIntensity float64) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	if carbonIntensity <= 0 {
		carbonIntensity = defaultCarbonIntensity
	}
	return &PrometheusSource{
		client:          v1.NewAPI(client),
		url:             url,
		carbonIntensity: carbonIntensity,
	}, nil
}

// Collect builds one UsageSample for the workload. Cost and energy queries
// degrade to zero when the corresponding exporter is absent; request and
// usage queries must succeed.
func (p *PrometheusSource) Collect(ctx context.Context, workload *models.Workload, window time.Duration) (*models.UsageSample, error) {
	selector := fmt.Sprintf(`namespace=%q,pod=~"%s.*"`, workload.Namespace, workload.Name)

	cpuRequested, err := p.querySingle(ctx,
		fmt.Sprintf(`sum(kube_pod_container_resource_requests{%s,resource="cpu"})`, selector))
	if err != nil {
		return nil, fmt.Errorf("CPU request query failed: %w", err)
	}

	cpuUsed, err := p.querySingle(ctx,
		fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{%s}[5m]))`, selector))
	if err != nil {
		return nil, fmt.Errorf("CPU usage query failed: %w", err)
	}

	memRequested, err := p.querySingle(ctx,
		fmt.Sprintf(`sum(kube_pod_container_resource_requests{%s,resource="memory"}) / 1024 / 1024 / 1024`, selector))
	if err != nil {
		return nil, fmt.Errorf("memory request query failed: %w", err)
	}

	memUsed, err := p.querySingle(ctx,
		fmt.Sprintf(`sum(container_memory_usage_bytes{%s}) / 1024 / 1024 / 1024`, selector))
	if err != nil {
		return nil, fmt.Errorf("memory usage query failed: %w", err)
	}

	// Hourly allocation cost, projected to a month.
	cpuCost := p.queryOptional(ctx,
		fmt.Sprintf(`sum(container_cpu_allocation{%s}) * %g`, selector, cpuCostPerCoreHour))
	memCost := p.queryOptional(ctx,
		fmt.Sprintf(`sum(container_memory_allocation_bytes{%s}) / 1024 / 1024 / 1024 * %g`, selector, memCostPerGBHour))
	monthlyCost := (cpuCost + memCost) * hoursPerMonth

	// Kepler reports cumulative joules per container.
	energyJoules := p.queryOptional(ctx,
		fmt.Sprintf(`sum(kepler_container_joules_total{namespace=%q,pod_name=~"%s.*"})`,
			workload.Namespace, workload.Name))
	carbon := energyJoules / joulesPerKWh * p.carbonIntensity

	return &models.UsageSample{
		Workload:        *workload,
		CPURequested:    cpuRequested,
		CPUUsed:         cpuUsed,
		MemoryRequested: memRequested,
		MemoryUsed:      memUsed,
		CurrentCost:     monthlyCost,
		CurrentCarbon:   carbon,
		Window:          window,
		CollectedAt:     time.Now(),
	}, nil
}

func (p *PrometheusSource) querySingle(ctx context.Context, query string) (float64, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	if len(warnings) > 0 {
		slog.Warn("prometheus query warnings", "warnings", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, fmt.Errorf("no data for query: %s", query)
	}

	sum := 0.0
	for _, sample := range vector {
		sum += float64(sample.Value)
	}
	return sum, nil
}

// queryOptional returns zero when the exporter behind the query is not
// installed. OpenCost and Kepler are both optional.
func (p *PrometheusSource) queryOptional(ctx context.Context, query string) float64 {
	v, err := p.querySingle(ctx, query)
	if err != nil {
		slog.Debug("optional metric unavailable", "query", query, "error", err)
		return 0
	}
	return v
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}
