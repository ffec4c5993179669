package detector

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// securityRule inspects pod- and container-level security declarations.
// Each missing or unsafe property yields exactly one finding with a fixed
// remediation. Privileged mode is the only condition classified high risk.
// Security findings carry no cost or carbon estimate.
func (d *Detector) securityRule(sample *models.UsageSample, spec *corev1.PodSpec) []models.Opportunity {
	var out []models.Opportunity

	finding := func(explanation, remediation string, confidence float64, risk models.RiskLevel) {
		out = append(out, models.Opportunity{
			Workload:    sample.Workload,
			Category:    models.CategorySecurity,
			Explanation: explanation,
			Reasoning:   remediation,
			Confidence:  confidence,
			Risk:        risk,
			CreatedAt:   time.Now(),
		})
	}

	if spec.SecurityContext == nil {
		finding(
			"Workload missing securityContext. Consider adding security constraints.",
			"Add a pod securityContext with runAsNonRoot and allowPrivilegeEscalation=false",
			0.9, models.RiskMedium,
		)
	} else if spec.SecurityContext.RunAsNonRoot == nil || !*spec.SecurityContext.RunAsNonRoot {
		finding(
			"Workload should run as a non-root user for security.",
			"Set securityContext.runAsNonRoot=true",
			0.8, models.RiskMedium,
		)
	}

	for i, container := range spec.Containers {
		name := container.Name
		if name == "" {
			name = fmt.Sprintf("container-%d", i)
		}

		sc := container.SecurityContext
		if sc == nil {
			finding(
				fmt.Sprintf("Container '%s' missing securityContext.", name),
				fmt.Sprintf("Add a securityContext to container '%s' with capability drops and readOnlyRootFilesystem", name),
				0.9, models.RiskMedium,
			)
		} else {
			if sc.ReadOnlyRootFilesystem == nil || !*sc.ReadOnlyRootFilesystem {
				finding(
					fmt.Sprintf("Container '%s' should use a read-only root filesystem.", name),
					fmt.Sprintf("Set securityContext.readOnlyRootFilesystem=true for container '%s'", name),
					0.7, models.RiskLow,
				)
			}
			if sc.Capabilities == nil || len(sc.Capabilities.Drop) == 0 {
				finding(
					fmt.Sprintf("Container '%s' should drop unnecessary capabilities.", name),
					fmt.Sprintf("Set securityContext.capabilities.drop=['ALL'] for container '%s'", name),
					0.8, models.RiskLow,
				)
			}
			if sc.Privileged != nil && *sc.Privileged {
				finding(
					fmt.Sprintf("Container '%s' running in privileged mode. This is a security risk.", name),
					fmt.Sprintf("Remove privileged=true from container '%s'", name),
					0.95, models.RiskHigh,
				)
			}
		}

		if len(container.Resources.Limits) == 0 {
			finding(
				fmt.Sprintf("Container '%s' missing resource limits. Unbounded containers can starve the node.", name),
				fmt.Sprintf("Add resources.limits to container '%s'", name),
				0.8, models.RiskMedium,
			)
		}
	}

	for _, volume := range spec.Volumes {
		if volume.HostPath != nil {
			finding(
				fmt.Sprintf("Volume '%s' uses hostPath which can expose the node filesystem.", volume.Name),
				"Avoid hostPath volumes or use subPath with restricted permissions",
				0.9, models.RiskMedium,
			)
		}
	}

	return out
}
