package models

import "time"

// Workload identifies a deployable unit in the cluster.
type Workload struct {
	Name      string
	Kind      string // Deployment, StatefulSet, DaemonSet
	Namespace string
	ClusterID string
	Replicas  int32
}

// UsageSample is one workload's aggregated observation window.
// All quantities are in canonical units: CPU in cores, memory in GB.
// Cost is USD per month, carbon is gCO2e per month.
type UsageSample struct {
	Workload Workload

	CPURequested    float64
	CPUUsed         float64
	MemoryRequested float64
	MemoryUsed      float64

	CurrentCost   float64
	CurrentCarbon float64

	Window      time.Duration
	CollectedAt time.Time
}

// CPUUtilization returns used/requested CPU as a percentage, 0 when nothing
// is requested.
func (s *UsageSample) CPUUtilization() float64 {
	if s.CPURequested <= 0 {
		return 0
	}
	return s.CPUUsed / s.CPURequested * 100
}

// MemoryUtilization returns used/requested memory as a percentage, 0 when
// nothing is requested.
func (s *UsageSample) MemoryUtilization() float64 {
	if s.MemoryRequested <= 0 {
		return 0
	}
	return s.MemoryUsed / s.MemoryRequested * 100
}

// RiskLevel represents the risk of acting on a finding.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)
