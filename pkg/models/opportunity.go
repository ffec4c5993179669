package models

import "time"

// Category classifies an optimization opportunity.
type Category string

const (
	CategoryRightsizing Category = "rightsizing"
	CategoryScheduling  Category = "scheduling"
	CategoryImage       Category = "image-optimization"
	CategorySecurity    Category = "security"
)

// Opportunity is one detected, independently actionable optimization or
// remediation candidate for a workload. Immutable once created.
type Opportunity struct {
	ID       string
	Workload Workload
	Category Category

	// Explanation is operator-facing text; Reasoning is the machine-readable
	// rationale behind the finding.
	Explanation string
	Reasoning   string

	Confidence float64 // [0,1]
	Risk       RiskLevel

	CurrentCost     float64
	ProjectedCost   float64
	Savings         float64
	CurrentCarbon   float64
	ProjectedCarbon float64
	CarbonReduction float64

	CreatedAt time.Time
}
