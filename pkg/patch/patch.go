// Package patch renders recommendations as applicable Kubernetes YAML:
// either a surgical update of an existing manifest or a standalone
// template when no original is available.
package patch

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// Generator renders recommendations as YAML patches.
type Generator struct {
	limitFactor float64
}

// New creates a Generator. Limits default to 1.5x the rounded requests.
func New() *Generator {
	return &Generator{limitFactor: 1.5}
}

// Generate produces the patch text for a recommendation. When an original
// manifest is supplied it is updated in place: only the resource requests
// and limits of containers matching the given names change, everything
// else survives re-serialization untouched. Without an original, or when
// the original cannot be parsed or traversed, a self-contained template
// is emitted instead; a recommendation never fails to render.
func (g *Generator) Generate(rec *models.Recommendation, original []byte, containerNames ...string) (text string, merged bool) {
	if len(original) > 0 {
		out, err := g.merge(rec, original, containerNames)
		if err == nil {
			return out, true
		}
		slog.Warn("merge-mode patch failed, falling back to template",
			"workload", rec.Workload.Name,
			"error", err,
		)
	}
	return g.template(rec), false
}

func (g *Generator) merge(rec *models.Recommendation, original []byte, containerNames []string) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(original, &root); err != nil {
		return "", fmt.Errorf("parse original: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return "", fmt.Errorf("original is not a YAML document")
	}
	doc := root.Content[0]

	containers, err := findContainers(doc)
	if err != nil {
		return "", err
	}

	wanted := make(map[string]bool, len(containerNames))
	for _, name := range containerNames {
		wanted[name] = true
	}

	requests, limits := g.resourceValues(rec)

	for _, container := range containers.Content {
		if container.Kind != yaml.MappingNode {
			continue
		}
		name := mapValue(container, "name")
		if name == nil || !wanted[name.Value] {
			continue
		}
		setResources(container, requests, limits)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode patched document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// findContainers locates the container list, handling both pod-template
// wrapped kinds (Deployment, StatefulSet, ...) and bare pod specs.
func findContainers(doc *yaml.Node) (*yaml.Node, error) {
	spec := mapValue(doc, "spec")
	if spec == nil {
		return nil, fmt.Errorf("document has no spec")
	}

	podSpec := spec
	if template := mapValue(spec, "template"); template != nil {
		inner := mapValue(template, "spec")
		if inner == nil {
			return nil, fmt.Errorf("pod template has no spec")
		}
		podSpec = inner
	}

	containers := mapValue(podSpec, "containers")
	if containers == nil || containers.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("no container list found")
	}
	return containers, nil
}

// resourceValues renders the recommendation in Kubernetes quantities.
// Limits are computed from the already-rounded requests so the emitted
// requests and limits stay internally consistent.
func (g *Generator) resourceValues(rec *models.Recommendation) (requests, limits map[string]string) {
	cpuMilli := int(math.Round(rec.RecommendedCPU * 1000))
	memMi := int(math.Round(rec.RecommendedMemory * 1024))

	cpuLimit := int(math.Round(float64(cpuMilli) * g.limitFactor))
	memLimit := int(math.Round(float64(memMi) * g.limitFactor))

	requests = map[string]string{
		"cpu":    fmt.Sprintf("%dm", cpuMilli),
		"memory": fmt.Sprintf("%dMi", memMi),
	}
	limits = map[string]string{
		"cpu":    fmt.Sprintf("%dm", cpuLimit),
		"memory": fmt.Sprintf("%dMi", memLimit),
	}
	return requests, limits
}

// setResources upserts requests and limits under the container's
// resources block, preserving any sibling fields.
func setResources(container *yaml.Node, requests, limits map[string]string) {
	resources := mapValue(container, "resources")
	if resources == nil {
		resources = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		appendKey(container, "resources", resources)
	}
	upsertMap(resources, "requests", requests)
	upsertMap(resources, "limits", limits)
}

func upsertMap(parent *yaml.Node, key string, values map[string]string) {
	target := mapValue(parent, key)
	if target == nil {
		target = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		appendKey(parent, key, target)
	}

	// Fixed key order keeps the output deterministic.
	for _, k := range []string{"cpu", "memory"} {
		value := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: values[k],
			Style: yaml.DoubleQuotedStyle,
		}
		if existing := mapValue(target, k); existing != nil {
			*existing = *value
		} else {
			appendKey(target, k, value)
		}
	}
}

// mapValue returns the value node for key in a mapping node, or nil.
func mapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func appendKey(node *yaml.Node, key string, value *yaml.Node) {
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// template emits a minimal skeleton carrying only identity and the
// recommended resource block. The container name requires manual
// reconciliation before applying.
func (g *Generator) template(rec *models.Recommendation) string {
	requests, limits := g.resourceValues(rec)

	kind := rec.Workload.Kind
	if kind == "" {
		kind = "Deployment"
	}

	return strings.TrimSpace(fmt.Sprintf(`apiVersion: apps/v1
kind: %s
metadata:
  name: %s
  namespace: %s
spec:
  template:
    spec:
      containers:
      - name: main  # update with actual container name
        resources:
          requests:
            cpu: %q
            memory: %q
          limits:
            cpu: %q
            memory: %q
`, kind, rec.Workload.Name, rec.Workload.Namespace,
		requests["cpu"], requests["memory"], limits["cpu"], limits["memory"])) + "\n"
}
