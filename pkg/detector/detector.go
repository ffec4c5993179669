// Package detector evaluates workload metrics and static configuration
// against independent rule families, producing typed optimization
// opportunities.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/greenops/greenops-advisor/pkg/models"
	"github.com/greenops/greenops-advisor/pkg/registry"
)

// Detector evaluates one workload per call. Rules are independent: a
// workload may match zero, one, or many in a single pass, and a failure
// in one rule never suppresses findings from the others.
type Detector struct {
	resolver registry.SizeResolver

	// bulkMultiplier is the coarse scan-time sizing multiplier. It is
	// deliberately distinct from the estimator's safety buffer; the two
	// operate at different granularities and are configured separately.
	bulkMultiplier       float64
	utilizationThreshold float64 // percent; rightsizing trigger
	batchCPUThreshold    float64 // percent; batch-conversion trigger

	imageSizeThresholdMB int
	imageCostPerMBMonth  float64
	imageCarbonPerMB     float64

	batchConversionSavings  float64 // USD/month, fixed conservative estimate
	nodePlacementSavings    float64
}

// Config carries the detector's tunable constants. Zero values fall back
// to defaults.
type Config struct {
	BulkMultiplier       float64
	UtilizationThreshold float64
	BatchCPUThreshold    float64
	ImageSizeThresholdMB int
}

// New creates a Detector. The resolver may be nil, in which case the
// image-footprint rule is skipped entirely.
func New(resolver registry.SizeResolver, cfg Config) *Detector {
	d := &Detector{
		resolver:               resolver,
		bulkMultiplier:         2.2,
		utilizationThreshold:   20,
		batchCPUThreshold:      5,
		imageSizeThresholdMB:   200,
		imageCostPerMBMonth:    0.0001 * 30,
		imageCarbonPerMB:       0.02,
		batchConversionSavings: 50,
		nodePlacementSavings:   30,
	}
	if cfg.BulkMultiplier > 0 {
		d.bulkMultiplier = cfg.BulkMultiplier
	}
	if cfg.UtilizationThreshold > 0 {
		d.utilizationThreshold = cfg.UtilizationThreshold
	}
	if cfg.BatchCPUThreshold > 0 {
		d.batchCPUThreshold = cfg.BatchCPUThreshold
	}
	if cfg.ImageSizeThresholdMB > 0 {
		d.imageSizeThresholdMB = cfg.ImageSizeThresholdMB
	}
	return d
}

// Detect evaluates all rule families for one workload. The returned
// opportunities are unordered; ranking is a presentation concern.
func (d *Detector) Detect(ctx context.Context, sample *models.UsageSample, spec *corev1.PodSpec) []models.Opportunity {
	var out []models.Opportunity

	d.runRule("rightsizing", sample.Workload, func() {
		out = append(out, d.rightsizingRule(sample)...)
	})
	if spec != nil {
		d.runRule("scheduling", sample.Workload, func() {
			out = append(out, d.schedulingRule(sample, spec)...)
		})
		d.runRule("image-footprint", sample.Workload, func() {
			out = append(out, d.imageRule(ctx, sample, spec)...)
		})
		d.runRule("security", sample.Workload, func() {
			out = append(out, d.securityRule(sample, spec)...)
		})
	}

	return out
}

// runRule isolates one rule family so an unexpected panic inside it does
// not suppress findings from the others.
func (d *Detector) runRule(name string, w models.Workload, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detection rule failed",
				"rule", name,
				"workload", w.Name,
				"namespace", w.Namespace,
				"panic", r,
			)
		}
	}()
	fn()
}

func (d *Detector) rightsizingRule(sample *models.UsageSample) []models.Opportunity {
	cpuUtil := sample.CPUUtilization()
	memUtil := sample.MemoryUtilization()

	if cpuUtil >= d.utilizationThreshold && memUtil >= d.utilizationThreshold {
		return nil
	}

	recommendedCPU := sample.CPUUsed * d.bulkMultiplier

	reductionRatio := 1.0
	if sample.CPURequested > 0 {
		reductionRatio = recommendedCPU / sample.CPURequested
	}
	if reductionRatio > 1 {
		reductionRatio = 1
	}

	projectedCost := sample.CurrentCost * reductionRatio
	projectedCarbon := sample.CurrentCarbon * reductionRatio

	risk := models.RiskMedium
	confidence := 0.6
	switch {
	case cpuUtil < 10 || memUtil < 10:
		risk = models.RiskLow
		confidence = 0.9
	case cpuUtil < 15 || memUtil < 15:
		risk = models.RiskMedium
		confidence = 0.75
	}

	return []models.Opportunity{{
		Workload: sample.Workload,
		Category: models.CategoryRightsizing,
		Explanation: fmt.Sprintf(
			"Workload is underutilized. CPU: %.1f%%, Memory: %.1f%%. Rightsizing can save $%.2f/month.",
			cpuUtil, memUtil, sample.CurrentCost-projectedCost),
		Reasoning: fmt.Sprintf(
			"avg CPU %.3f/%.3f cores (%.1f%%), avg memory %.3f/%.3f GB (%.1f%%) over %s",
			sample.CPUUsed, sample.CPURequested, cpuUtil,
			sample.MemoryUsed, sample.MemoryRequested, memUtil, sample.Window),
		Confidence:      confidence,
		Risk:            risk,
		CurrentCost:     sample.CurrentCost,
		ProjectedCost:   projectedCost,
		Savings:         sample.CurrentCost - projectedCost,
		CurrentCarbon:   sample.CurrentCarbon,
		ProjectedCarbon: projectedCarbon,
		CarbonReduction: sample.CurrentCarbon - projectedCarbon,
		CreatedAt:       time.Now(),
	}}
}

func (d *Detector) schedulingRule(sample *models.UsageSample, spec *corev1.PodSpec) []models.Opportunity {
	var out []models.Opportunity

	unconstrained := len(spec.NodeSelector) == 0 &&
		spec.Affinity == nil &&
		len(spec.Tolerations) == 0 &&
		len(spec.TopologySpreadConstraints) == 0

	if !unconstrained {
		return nil
	}

	alwaysRestart := spec.RestartPolicy == "" || spec.RestartPolicy == corev1.RestartPolicyAlways

	if alwaysRestart && sample.CPUUtilization() < d.batchCPUThreshold {
		out = append(out, models.Opportunity{
			Workload: sample.Workload,
			Category: models.CategoryScheduling,
			Explanation: fmt.Sprintf(
				"Workload runs continuously at %.1f%% CPU. Converting it to a scheduled job could save ~$%.0f/month.",
				sample.CPUUtilization(), d.batchConversionSavings),
			Reasoning:     "always-restart workload with no placement constraints and near-idle CPU",
			Confidence:    0.7,
			Risk:          models.RiskMedium,
			CurrentCost:   sample.CurrentCost,
			ProjectedCost: sample.CurrentCost - d.batchConversionSavings,
			Savings:       d.batchConversionSavings,
			CurrentCarbon: sample.CurrentCarbon,
			CreatedAt:     time.Now(),
		})
	}

	out = append(out, models.Opportunity{
		Workload: sample.Workload,
		Category: models.CategoryScheduling,
		Explanation: fmt.Sprintf(
			"Workload has no node placement constraints; scheduling it onto cheaper nodes could save ~$%.0f/month.",
			d.nodePlacementSavings),
		Reasoning:     "no nodeSelector, affinity, tolerations, or topology spread constraints declared",
		Confidence:    0.6,
		Risk:          models.RiskLow,
		CurrentCost:   sample.CurrentCost,
		ProjectedCost: sample.CurrentCost - d.nodePlacementSavings,
		Savings:       d.nodePlacementSavings,
		CurrentCarbon: sample.CurrentCarbon,
		CreatedAt:     time.Now(),
	})

	return out
}

func (d *Detector) imageRule(ctx context.Context, sample *models.UsageSample, spec *corev1.PodSpec) []models.Opportunity {
	if d.resolver == nil {
		return nil
	}

	var out []models.Opportunity
	for _, container := range spec.Containers {
		if container.Image == "" {
			continue
		}

		sizeMB, ok := d.resolver.Resolve(ctx, container.Image)
		if !ok {
			// Size lookups degrade silently to "no opportunity".
			continue
		}
		if sizeMB <= d.imageSizeThresholdMB {
			continue
		}

		excess := float64(sizeMB - d.imageSizeThresholdMB)
		out = append(out, models.Opportunity{
			Workload: sample.Workload,
			Category: models.CategoryImage,
			Explanation: fmt.Sprintf(
				"Container image '%s' is %dMB, consider optimizing", container.Image, sizeMB),
			Reasoning: fmt.Sprintf(
				"compressed image size %dMB exceeds the %dMB threshold", sizeMB, d.imageSizeThresholdMB),
			Confidence:      0.8,
			Risk:            models.RiskLow,
			Savings:         excess * d.imageCostPerMBMonth,
			CarbonReduction: excess * d.imageCarbonPerMB,
			CreatedAt:       time.Now(),
		})
	}

	return out
}
