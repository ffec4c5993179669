// Package recommender derives safe resource-sizing suggestions from
// observed utilization.
package recommender

import (
	"github.com/greenops/greenops-advisor/pkg/models"
)

// Result holds a deterministic rightsizing suggestion for one workload.
type Result struct {
	SuggestedCPU    float64 // cores
	SuggestedMemory float64 // GB
	MonthlySavings  float64 // USD
}

// Estimator computes rightsizing suggestions. It is total: every input
// produces a result, and identical inputs produce identical results.
type Estimator struct {
	safetyBuffer       float64 // applied to observed usage
	reductionThreshold float64 // suggestion must fall below requested*threshold to count
	minCPUCores        float64
	minMemoryGB        float64
	cpuCostPerCoreHour float64
	memCostPerGBHour   float64
	hoursPerMonth      float64
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithSafetyBuffer overrides the usage multiplier (default 1.25).
func WithSafetyBuffer(b float64) Option {
	return func(e *Estimator) { e.safetyBuffer = b }
}

// WithReductionThreshold overrides the reduction-eligibility threshold
// (default 0.85).
func WithReductionThreshold(t float64) Option {
	return func(e *Estimator) { e.reductionThreshold = t }
}

// WithRates overrides the cost rates in USD per core-hour and per GB-hour.
func WithRates(cpu, mem float64) Option {
	return func(e *Estimator) {
		e.cpuCostPerCoreHour = cpu
		e.memCostPerGBHour = mem
	}
}

// New creates an Estimator with conservative defaults.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		safetyBuffer:       1.25,
		reductionThreshold: 0.85,
		minCPUCores:        0.025, // never recommend zero resources
		minMemoryGB:        0.05,
		cpuCostPerCoreHour: 0.02,
		memCostPerGBHour:   0.005,
		hoursPerMonth:      720,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate suggests requests for one workload from its usage sample.
// Suggested values never drop below the configured floors, and a reduction
// is only counted when the suggestion falls below the current request by
// the reduction threshold; marginal slack yields zero savings so
// recommendations do not flap.
func (e *Estimator) Estimate(sample *models.UsageSample) Result {
	suggestedCPU := sample.CPUUsed * e.safetyBuffer
	if suggestedCPU < e.minCPUCores {
		suggestedCPU = e.minCPUCores
	}

	suggestedMem := sample.MemoryUsed * e.safetyBuffer
	if suggestedMem < e.minMemoryGB {
		suggestedMem = e.minMemoryGB
	}

	cpuReduction := e.reduction(sample.CPURequested, suggestedCPU)
	memReduction := e.reduction(sample.MemoryRequested, suggestedMem)

	savings := (cpuReduction*e.cpuCostPerCoreHour + memReduction*e.memCostPerGBHour) * e.hoursPerMonth

	return Result{
		SuggestedCPU:    suggestedCPU,
		SuggestedMemory: suggestedMem,
		MonthlySavings:  savings,
	}
}

func (e *Estimator) reduction(requested, suggested float64) float64 {
	if suggested >= requested*e.reductionThreshold {
		return 0
	}
	if suggested >= requested {
		return 0
	}
	return requested - suggested
}
