// Package datasource collects workload usage observations from the
// cluster's monitoring stack.
package datasource

import (
	"context"
	"time"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// MetricsSource yields one aggregated usage observation per workload.
type MetricsSource interface {
	Collect(ctx context.Context, workload *models.Workload, window time.Duration) (*models.UsageSample, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

// Config selects and tunes the metrics source.
type Config struct {
	PrometheusURL    string
	UseMetricsServer bool
	CarbonIntensity  float64 // gCO2e per kWh
	Timeout          time.Duration
}
