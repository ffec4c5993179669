package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/greenops/greenops-advisor/pkg/models"
)

const deploymentManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: api
  namespace: prod
  labels:
    team: platform
spec:
  replicas: 3
  template:
    metadata:
      labels:
        app: api
    spec:
      containers:
      - name: api
        image: registry.example.com/api:v1.4.2
        env:
        - name: LOG_LEVEL
          value: info
        resources:
          requests:
            cpu: "2"
            memory: 4Gi
      - name: sidecar
        image: registry.example.com/proxy:v2
`

func testRecommendation() *models.Recommendation {
	return &models.Recommendation{
		Workload:          models.Workload{Name: "api", Kind: "Deployment", Namespace: "prod"},
		RecommendedCPU:    0.625,
		RecommendedMemory: 1.25,
	}
}

func TestGenerateMergeUpdatesOnlyMatchedContainer(t *testing.T) {
	g := New()
	out, merged := g.Generate(testRecommendation(), []byte(deploymentManifest), "api")
	require.True(t, merged)

	var doc struct {
		Spec struct {
			Replicas int `yaml:"replicas"`
			Template struct {
				Spec struct {
					Containers []struct {
						Name      string `yaml:"name"`
						Image     string `yaml:"image"`
						Resources struct {
							Requests map[string]string `yaml:"requests"`
							Limits   map[string]string `yaml:"limits"`
						} `yaml:"resources"`
					} `yaml:"containers"`
				} `yaml:"spec"`
			} `yaml:"template"`
		} `yaml:"spec"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	require.Len(t, doc.Spec.Template.Spec.Containers, 2)
	api := doc.Spec.Template.Spec.Containers[0]
	sidecar := doc.Spec.Template.Spec.Containers[1]

	// 0.625 cores -> 625m, 1.25 GB -> 1280Mi, limits 1.5x the rounded request.
	assert.Equal(t, "625m", api.Resources.Requests["cpu"])
	assert.Equal(t, "1280Mi", api.Resources.Requests["memory"])
	assert.Equal(t, "938m", api.Resources.Limits["cpu"])
	assert.Equal(t, "1920Mi", api.Resources.Limits["memory"])

	// Fields outside the resource block survive untouched.
	assert.Equal(t, "registry.example.com/api:v1.4.2", api.Image)
	assert.Equal(t, 3, doc.Spec.Replicas)

	// The unmatched container keeps its empty resources.
	assert.Empty(t, sidecar.Resources.Requests)
	assert.Empty(t, sidecar.Resources.Limits)
}

func TestGenerateMergeNoMatchLeavesDocumentEquivalent(t *testing.T) {
	g := New()
	out, merged := g.Generate(testRecommendation(), []byte(deploymentManifest), "no-such-container")
	require.True(t, merged)

	var before, after any
	require.NoError(t, yaml.Unmarshal([]byte(deploymentManifest), &before))
	require.NoError(t, yaml.Unmarshal([]byte(out), &after))
	assert.Equal(t, before, after)
}

func TestGenerateMergePreservesComments(t *testing.T) {
	manifest := `apiVersion: v1
kind: Pod
metadata:
  name: worker
  namespace: batch
spec:
  # scheduled by the batch controller
  containers:
  - name: worker
    image: worker:latest
`
	g := New()
	out, merged := g.Generate(testRecommendation(), []byte(manifest), "worker")
	require.True(t, merged)
	assert.Contains(t, out, "# scheduled by the batch controller")
	assert.Contains(t, out, `cpu: "625m"`)
}

func TestGenerateTemplateWithoutOriginal(t *testing.T) {
	g := New()
	out, merged := g.Generate(testRecommendation(), nil)
	assert.False(t, merged)

	assert.Contains(t, out, "kind: Deployment")
	assert.Contains(t, out, "name: api")
	assert.Contains(t, out, "namespace: prod")
	assert.Contains(t, out, `cpu: "625m"`)
	assert.Contains(t, out, `memory: "1280Mi"`)
	assert.Contains(t, out, `cpu: "938m"`)
	assert.Contains(t, out, `memory: "1920Mi"`)
	assert.Contains(t, out, "update with actual container name")
}

func TestGenerateDegradesToTemplateOnGarbage(t *testing.T) {
	g := New()

	cases := map[string][]byte{
		"unparseable":   []byte("{{{: not yaml"),
		"no spec":       []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: x\n"),
		"no containers": []byte("spec:\n  template:\n    spec:\n      volumes: []\n"),
	}
	for name, original := range cases {
		t.Run(name, func(t *testing.T) {
			out, merged := g.Generate(testRecommendation(), original, "api")
			assert.False(t, merged)
			assert.Contains(t, out, "update with actual container name")
		})
	}
}

func TestGenerateRoundsToWholeUnits(t *testing.T) {
	rec := testRecommendation()
	rec.RecommendedCPU = 0.3333
	rec.RecommendedMemory = 0.333

	g := New()
	out, _ := g.Generate(rec, nil)

	// 333m request, limit computed from 333m not from the raw cores.
	assert.Contains(t, out, `cpu: "333m"`)
	assert.Contains(t, out, `cpu: "500m"`)
	assert.Contains(t, out, `memory: "341Mi"`)
	assert.Contains(t, out, `memory: "512Mi"`)
	assert.False(t, strings.Contains(out, "."), "quantities must be whole units")
}
