package advisor

import (
	"fmt"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// Payload is the structured answer an advisory backend is asked to
// produce.
type Payload struct {
	Explanation       string
	RecommendedCPU    float64 // cores
	RecommendedMemory float64 // GB
	EstimatedSavings  float64 // USD/month
	RiskLevel         models.RiskLevel
	NextStep          string
}

// Response is a two-variant result: exactly one of Payload and Fallback
// is set. Callers branch on the discriminant; they never assume success.
type Response struct {
	Payload  *Payload
	Fallback *Fallback
}

// Fallback carries the error that forced the degraded path.
type Fallback struct {
	Err error
}

// Succeeded reports whether the advisory call produced a usable payload.
func (r Response) Succeeded() bool { return r.Payload != nil }

func success(p *Payload) Response { return Response{Payload: p} }

func failed(err error) Response { return Response{Fallback: &Fallback{Err: err}} }

// parsePayload validates the opaque backend reply against the expected
// five-field shape. Missing or mistyped fields are indistinguishable
// from a backend failure to the orchestrator.
func parsePayload(raw map[string]any) (*Payload, error) {
	explanation, err := stringField(raw, "explanation")
	if err != nil {
		return nil, err
	}
	cpu, err := numberField(raw, "recommended_cpu")
	if err != nil {
		return nil, err
	}
	mem, err := numberField(raw, "recommended_memory")
	if err != nil {
		return nil, err
	}
	savings, err := numberField(raw, "estimated_savings")
	if err != nil {
		return nil, err
	}
	riskText, err := stringField(raw, "risk_level")
	if err != nil {
		return nil, err
	}
	nextStep, err := stringField(raw, "next_step")
	if err != nil {
		return nil, err
	}

	return &Payload{
		Explanation:       explanation,
		RecommendedCPU:    cpu,
		RecommendedMemory: mem,
		EstimatedSavings:  savings,
		RiskLevel:         normalizeRisk(riskText),
		NextStep:          nextStep,
	}, nil
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformed, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: field %q is not a string", ErrMalformed, key)
	}
	return s, nil
}

func numberField(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformed, key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is not a number", ErrMalformed, key)
	}
	return f, nil
}

func normalizeRisk(s string) models.RiskLevel {
	switch models.RiskLevel(s) {
	case models.RiskLow, models.RiskMedium, models.RiskHigh:
		return models.RiskLevel(s)
	default:
		return models.RiskMedium
	}
}
