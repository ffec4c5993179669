package models

import "time"

// Provenance indicates whether a recommendation came from the external
// advisory service or from the deterministic fallback estimator.
type Provenance string

const (
	ProvenanceAI       Provenance = "ai"
	ProvenanceFallback Provenance = "fallback"
)

// Recommendation is the normalized five-field output contract consumed by
// the patch generator, identical in shape regardless of origin.
type Recommendation struct {
	ID       string
	Workload Workload

	Explanation       string
	RecommendedCPU    float64 // cores
	RecommendedMemory float64 // GB
	EstimatedSavings  float64 // USD/month
	Risk              RiskLevel
	NextStep          string

	Provenance Provenance
	CreatedAt  time.Time
}
