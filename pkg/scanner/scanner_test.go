package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func int32Ptr(v int32) *int32 { return &v }

func testDeployment(name, namespace string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       namespace,
			UID:             "abc-123",
			ResourceVersion: "42",
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(3),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "api", Image: "registry.example.com/api:v1"},
						{Name: "sidecar", Image: "registry.example.com/proxy:v2"},
					},
				},
			},
		},
	}
}

func TestListTargets(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("api", "prod"),
		&appsv1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{Name: "db", Namespace: "prod"},
			Spec: appsv1.StatefulSetSpec{
				Replicas: int32Ptr(2),
				Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{
						Containers: []corev1.Container{{Name: "postgres", Image: "postgres:16"}},
					},
				},
			},
		},
	)

	s := NewWithClients(clientset, nil)
	targets, err := s.ListTargets(context.Background(), "prod", false)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	byName := map[string]Target{}
	for _, tgt := range targets {
		byName[tgt.Workload.Name] = tgt
	}

	api := byName["api"]
	assert.Equal(t, "Deployment", api.Workload.Kind)
	assert.Equal(t, int32(3), api.Workload.Replicas)
	assert.Equal(t, []string{"api", "sidecar"}, api.Containers)
	assert.Equal(t, []string{"registry.example.com/api:v1", "registry.example.com/proxy:v2"}, api.Images)

	db := byName["db"]
	assert.Equal(t, "StatefulSet", db.Workload.Kind)
	assert.Equal(t, int32(2), db.Workload.Replicas)
}

func TestWorkloadDocumentStripsServerFields(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment("api", "prod"))
	s := NewWithClients(clientset, nil)

	doc, err := s.WorkloadDocument(context.Background(), "prod", "Deployment", "api")
	require.NoError(t, err)

	text := string(doc)
	assert.Contains(t, text, "kind: Deployment")
	assert.Contains(t, text, "name: api")
	assert.NotContains(t, text, "uid:")
	assert.NotContains(t, text, "resourceVersion:")
}

func TestWorkloadDocumentUnsupportedKind(t *testing.T) {
	s := NewWithClients(fake.NewSimpleClientset(), nil)
	_, err := s.WorkloadDocument(context.Background(), "prod", "CronJob", "reaper")
	assert.Error(t, err)
}
