package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/greenops/greenops-advisor/pkg/models"
	"github.com/greenops/greenops-advisor/pkg/recommender"
)

const systemPrompt = "You are a Kubernetes cost optimization expert. " +
	"Respond only with a JSON object."

const promptTemplate = `Analyze this workload and provide recommendations:

Workload: %s
Type: %s
Namespace: %s

Current Resources:
- CPU Requested: %.3f cores
- CPU Used (avg): %.3f cores
- CPU Utilization: %.1f%%
- Memory Requested: %.3f GB
- Memory Used (avg): %.3f GB
- Memory Utilization: %.1f%%

Current Cost: $%.2f/month
Current Carbon: %.2f gCO2e/month

Provide:
1. A brief explanation of the inefficiency (2-3 sentences)
2. Recommended CPU value (in cores)
3. Recommended Memory value (in GB)
4. Estimated monthly savings ($)
5. Risk assessment (low/medium/high)
6. One actionable next step

Format your response as JSON with keys: explanation, recommended_cpu, recommended_memory, estimated_savings, risk_level, next_step`

// Orchestrator drives an advisory backend and guarantees a well-formed
// Recommendation on every call: any failure substitutes the deterministic
// estimator's output, distinguishable only by the provenance field.
type Orchestrator struct {
	backend   Backend
	estimator *recommender.Estimator
	timeout   time.Duration
}

// NewOrchestrator wires a backend to its fallback estimator. The timeout
// bounds each advisory call independently of the retry loop's backoff.
func NewOrchestrator(backend Backend, estimator *recommender.Estimator, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		backend:   backend,
		estimator: estimator,
		timeout:   timeout,
	}
}

// Recommend produces a recommendation for one workload. It never returns
// an error: the fallback path is always safe to take, including after
// cancellation of the in-flight advisory call.
func (o *Orchestrator) Recommend(ctx context.Context, sample *models.UsageSample) *models.Recommendation {
	resp := o.consult(ctx, sample)
	return o.normalize(resp, sample)
}

// consult runs the advisory call and parses the reply. A panic inside a
// backend is converted to a fallback like any other failure.
func (o *Orchestrator) consult(ctx context.Context, sample *models.UsageSample) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("advisory backend panicked", "backend", o.backend.Name(), "panic", r)
			resp = failed(fmt.Errorf("backend panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(promptTemplate,
		sample.Workload.Name, sample.Workload.Kind, sample.Workload.Namespace,
		sample.CPURequested, sample.CPUUsed, sample.CPUUtilization(),
		sample.MemoryRequested, sample.MemoryUsed, sample.MemoryUtilization(),
		sample.CurrentCost, sample.CurrentCarbon,
	)

	raw, err := o.backend.Ask(ctx, prompt, systemPrompt)
	if err != nil {
		return failed(err)
	}

	payload, err := parsePayload(raw)
	if err != nil {
		// Malformed output is treated identically to a backend failure.
		return failed(err)
	}
	return success(payload)
}

// normalize flattens both variants into the five-field shape downstream
// consumers expect, tagging provenance so degraded confidence can be
// surfaced without knowing why.
func (o *Orchestrator) normalize(resp Response, sample *models.UsageSample) *models.Recommendation {
	rec := &models.Recommendation{
		Workload:  sample.Workload,
		CreatedAt: time.Now(),
	}

	if resp.Succeeded() {
		p := resp.Payload
		rec.Explanation = p.Explanation
		rec.RecommendedCPU = p.RecommendedCPU
		rec.RecommendedMemory = p.RecommendedMemory
		rec.EstimatedSavings = p.EstimatedSavings
		rec.Risk = p.RiskLevel
		rec.NextStep = p.NextStep
		rec.Provenance = models.ProvenanceAI
		return rec
	}

	err := resp.Fallback.Err
	est := o.estimator.Estimate(sample)

	rec.RecommendedCPU = est.SuggestedCPU
	rec.RecommendedMemory = est.SuggestedMemory
	rec.EstimatedSavings = est.MonthlySavings
	rec.Provenance = models.ProvenanceFallback

	if classified(err) {
		rec.Explanation = fmt.Sprintf(
			"AI analysis unavailable (%v). Values below come from the deterministic rightsizing estimator.", err)
		rec.Risk = models.RiskMedium
		rec.NextStep = "Manually review resource usage patterns before applying"
	} else {
		rec.Explanation = fmt.Sprintf(
			"Unexpected advisory failure (%v). Values below come from the deterministic rightsizing estimator.", err)
		rec.Risk = models.RiskHigh
		rec.NextStep = "Fix the advisory integration"
	}

	slog.Info("recommendation degraded to fallback",
		"workload", sample.Workload.Name,
		"namespace", sample.Workload.Namespace,
		"error", err,
	)

	return rec
}

func classified(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrCredential)
}
