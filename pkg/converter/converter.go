// Package converter parses Kubernetes quantity strings into canonical
// floating-point units: CPU in cores, memory in GB (2^30 bytes).
package converter

import (
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

const bytesPerGB = 1 << 30

// CoresFromCPUString converts a CPU quantity string ("500m", "2", "0.5")
// to cores. Unparseable or empty input yields 0.0; conversions sit on a
// hot path and must never abort the pipeline.
func CoresFromCPUString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0
	}
	return float64(q.MilliValue()) / 1000.0
}

// GBFromMemString converts a memory quantity string ("512Mi", "1Gi", "2G",
// bare bytes) to GB. Binary (Ki/Mi/Gi) and decimal (K/M/G) suffixes keep
// their distinct meanings. Unparseable or empty input yields 0.0.
func GBFromMemString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0
	}
	return q.AsApproximateFloat64() / bytesPerGB
}
