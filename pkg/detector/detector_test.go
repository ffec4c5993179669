package detector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/greenops/greenops-advisor/pkg/models"
)

type stubResolver struct {
	sizes map[string]int
}

func (s stubResolver) Resolve(_ context.Context, ref string) (int, bool) {
	size, ok := s.sizes[ref]
	return size, ok
}

func usageSample(cpuReq, cpuUsed, memReq, memUsed, cost float64) *models.UsageSample {
	return &models.UsageSample{
		Workload:        models.Workload{Name: "api", Kind: "Deployment", Namespace: "default"},
		CPURequested:    cpuReq,
		CPUUsed:         cpuUsed,
		MemoryRequested: memReq,
		MemoryUsed:      memUsed,
		CurrentCost:     cost,
		CurrentCarbon:   cost / 10,
		Window:          24 * time.Hour,
	}
}

func constrainedSpec(containers ...corev1.Container) *corev1.PodSpec {
	return &corev1.PodSpec{
		NodeSelector: map[string]string{"pool": "general"},
		Containers:   containers,
	}
}

func secureContainer(name string) corev1.Container {
	yes := true
	return corev1.Container{
		Name: name,
		SecurityContext: &corev1.SecurityContext{
			ReadOnlyRootFilesystem: &yes,
			Capabilities:           &corev1.Capabilities{Drop: []corev1.Capability{"ALL"}},
		},
		Resources: corev1.ResourceRequirements{
			Limits: corev1.ResourceList{corev1.ResourceCPU: {}},
		},
	}
}

func securePodSpec(containers ...corev1.Container) *corev1.PodSpec {
	yes := true
	spec := constrainedSpec(containers...)
	spec.SecurityContext = &corev1.PodSecurityContext{RunAsNonRoot: &yes}
	return spec
}

func opportunitiesOf(all []models.Opportunity, cat models.Category) []models.Opportunity {
	var out []models.Opportunity
	for _, o := range all {
		if o.Category == cat {
			out = append(out, o)
		}
	}
	return out
}

func TestRightsizingRuleBands(t *testing.T) {
	d := New(nil, Config{})

	cases := []struct {
		name       string
		cpuUtil    float64 // percent
		risk       models.RiskLevel
		confidence float64
	}{
		{"very low", 8, models.RiskLow, 0.9},
		{"low", 12, models.RiskMedium, 0.75},
		{"moderate", 18, models.RiskMedium, 0.6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := usageSample(2, 2*tc.cpuUtil/100, 4, 3.8, 100)
			found := opportunitiesOf(d.Detect(context.Background(), sample, securePodSpec(secureContainer("app"))), models.CategoryRightsizing)

			require.Len(t, found, 1)
			assert.Equal(t, tc.risk, found[0].Risk)
			assert.InDelta(t, tc.confidence, found[0].Confidence, 1e-9)
			assert.Greater(t, found[0].Savings, 0.0)
		})
	}
}

func TestRightsizingRuleNotTriggered(t *testing.T) {
	d := New(nil, Config{})
	sample := usageSample(2, 1.5, 4, 3.5, 100) // 75% / 87.5%

	found := opportunitiesOf(d.Detect(context.Background(), sample, securePodSpec(secureContainer("app"))), models.CategoryRightsizing)
	assert.Empty(t, found)
}

func TestSchedulingRuleUnconstrainedIdle(t *testing.T) {
	d := New(nil, Config{})
	sample := usageSample(2, 0.05, 4, 3.8, 100) // 2.5% CPU

	spec := &corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyAlways,
		Containers:    []corev1.Container{secureContainer("app")},
	}
	spec.SecurityContext = securePodSpec().SecurityContext

	found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategoryScheduling)
	require.Len(t, found, 2)

	savings := []float64{found[0].Savings, found[1].Savings}
	assert.Contains(t, savings, 50.0)
	assert.Contains(t, savings, 30.0)
}

func TestSchedulingRuleConstrainedWorkload(t *testing.T) {
	d := New(nil, Config{})
	sample := usageSample(2, 0.05, 4, 3.8, 100)

	found := opportunitiesOf(d.Detect(context.Background(), sample, securePodSpec(secureContainer("app"))), models.CategoryScheduling)
	assert.Empty(t, found)
}

func TestImageRuleThresholdBoundary(t *testing.T) {
	resolver := stubResolver{sizes: map[string]int{
		"at-threshold:v1":   200,
		"over-threshold:v1": 201,
		"huge:v1":           700,
	}}
	d := New(resolver, Config{})
	sample := usageSample(2, 1.8, 4, 3.8, 100)

	t.Run("exactly at threshold yields nothing", func(t *testing.T) {
		spec := securePodSpec(secureContainer("app"))
		spec.Containers[0].Image = "at-threshold:v1"
		found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategoryImage)
		assert.Empty(t, found)
	})

	t.Run("one MB over yields one", func(t *testing.T) {
		spec := securePodSpec(secureContainer("app"))
		spec.Containers[0].Image = "over-threshold:v1"
		found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategoryImage)
		require.Len(t, found, 1)
		assert.InDelta(t, 1*0.0001*30, found[0].Savings, 1e-9)
		assert.InDelta(t, 1*0.02, found[0].CarbonReduction, 1e-9)
		assert.Equal(t, models.RiskLow, found[0].Risk)
		assert.InDelta(t, 0.8, found[0].Confidence, 1e-9)
	})

	t.Run("savings scale with excess", func(t *testing.T) {
		spec := securePodSpec(secureContainer("app"))
		spec.Containers[0].Image = "huge:v1"
		found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategoryImage)
		require.Len(t, found, 1)
		assert.InDelta(t, 500*0.0001*30, found[0].Savings, 1e-9)
	})
}

func TestImageRuleResolverFailureDegradesSilently(t *testing.T) {
	d := New(stubResolver{}, Config{})
	sample := usageSample(2, 1.8, 4, 3.8, 100)

	spec := securePodSpec(secureContainer("app"))
	spec.Containers[0].Image = "unresolvable:v1"

	found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategoryImage)
	assert.Empty(t, found)
}

func TestSecurityRulePrivileged(t *testing.T) {
	yes := true
	container := secureContainer("worker")
	container.SecurityContext.Privileged = &yes

	d := New(nil, Config{})
	sample := usageSample(2, 1.8, 4, 3.8, 100)

	found := opportunitiesOf(d.Detect(context.Background(), sample, securePodSpec(container)), models.CategorySecurity)

	var privileged []models.Opportunity
	for _, o := range found {
		if o.Risk == models.RiskHigh {
			privileged = append(privileged, o)
		}
	}
	require.Len(t, privileged, 1, "privileged mode must yield exactly one high-risk finding")
	assert.InDelta(t, 0.95, privileged[0].Confidence, 1e-9)
	assert.Zero(t, privileged[0].Savings)
	assert.Zero(t, privileged[0].CarbonReduction)
}

func TestSecurityRuleMissingContexts(t *testing.T) {
	d := New(nil, Config{})
	sample := usageSample(2, 1.8, 4, 3.8, 100)

	spec := constrainedSpec(corev1.Container{Name: "bare"})
	spec.Volumes = []corev1.Volume{{
		Name:         "host",
		VolumeSource: corev1.VolumeSource{HostPath: &corev1.HostPathVolumeSource{Path: "/var/run"}},
	}}

	found := opportunitiesOf(d.Detect(context.Background(), sample, spec), models.CategorySecurity)

	// Missing pod securityContext, missing container securityContext,
	// missing limits, hostPath volume.
	assert.Len(t, found, 4)
	for _, o := range found {
		assert.NotEqual(t, models.RiskHigh, o.Risk, "only privileged mode is high risk: %s", o.Explanation)
	}
}

func TestRuleIsolation(t *testing.T) {
	d := New(nil, Config{})

	assert.NotPanics(t, func() {
		d.runRule("exploding", models.Workload{Name: "w"}, func() {
			panic("rule bug")
		})
	})
}
