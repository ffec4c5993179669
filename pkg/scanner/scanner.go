// Package scanner enumerates cluster workloads and exposes their pod
// specs and manifests to the analysis layers.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
	"sigs.k8s.io/yaml"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// Target pairs a workload identity with its pod spec, image references,
// and container names, everything the rule engine needs in one pass.
type Target struct {
	Workload   models.Workload
	PodSpec    corev1.PodSpec
	Containers []string
	Images     []string
}

type Scanner struct {
	clientset     kubernetes.Interface
	metricsClient metricsv.Interface
}

// New builds a Scanner against the local kubeconfig, falling back to
// in-cluster credentials when no kubeconfig exists.
func New() (*Scanner, error) {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	return &Scanner{clientset: clientset, metricsClient: metricsClient}, nil
}

// NewWithClients is the injection point for tests and callers that
// already hold configured clients.
func NewWithClients(clientset kubernetes.Interface, metricsClient metricsv.Interface) *Scanner {
	return &Scanner{clientset: clientset, metricsClient: metricsClient}
}

func (s *Scanner) Clientset() kubernetes.Interface { return s.clientset }

func (s *Scanner) MetricsClient() metricsv.Interface { return s.metricsClient }

// ListTargets returns every Deployment, StatefulSet, and DaemonSet in
// the given namespace, or in all namespaces when allNamespaces is set.
// A namespace that fails to list is logged and skipped.
func (s *Scanner) ListTargets(ctx context.Context, namespace string, allNamespaces bool) ([]Target, error) {
	namespaces := []string{namespace}
	if allNamespaces {
		nsList, err := s.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list namespaces: %w", err)
		}
		namespaces = namespaces[:0]
		for _, ns := range nsList.Items {
			namespaces = append(namespaces, ns.Name)
		}
		slog.Info("scanning all namespaces", "count", len(namespaces))
	}

	var targets []Target
	for _, ns := range namespaces {
		nsTargets, err := s.scanNamespace(ctx, ns)
		if err != nil {
			slog.Warn("namespace scan failed", "namespace", ns, "error", err)
			continue
		}
		targets = append(targets, nsTargets...)
	}
	return targets, nil
}

func (s *Scanner) scanNamespace(ctx context.Context, namespace string) ([]Target, error) {
	var targets []Target

	deployments, err := s.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	for _, d := range deployments.Items {
		targets = append(targets, newTarget(d.Name, "Deployment", d.Namespace, replicas(d.Spec.Replicas), d.Spec.Template.Spec))
	}

	statefulSets, err := s.clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list statefulsets: %w", err)
	}
	for _, sts := range statefulSets.Items {
		targets = append(targets, newTarget(sts.Name, "StatefulSet", sts.Namespace, replicas(sts.Spec.Replicas), sts.Spec.Template.Spec))
	}

	daemonSets, err := s.clientset.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list daemonsets: %w", err)
	}
	for _, ds := range daemonSets.Items {
		targets = append(targets, newTarget(ds.Name, "DaemonSet", ds.Namespace, 1, ds.Spec.Template.Spec))
	}

	return targets, nil
}

func newTarget(name, kind, namespace string, replicas int32, spec corev1.PodSpec) Target {
	t := Target{
		Workload: models.Workload{
			Name:      name,
			Kind:      kind,
			Namespace: namespace,
			Replicas:  replicas,
		},
		PodSpec: spec,
	}
	for _, c := range spec.Containers {
		t.Containers = append(t.Containers, c.Name)
		t.Images = append(t.Images, c.Image)
	}
	return t
}

func replicas(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}

// WorkloadDocument fetches the live manifest of a workload as YAML, the
// input for merge-mode patches. Server-populated metadata is stripped so
// the document round-trips cleanly.
func (s *Scanner) WorkloadDocument(ctx context.Context, namespace, kind, name string) ([]byte, error) {
	var obj any
	switch kind {
	case "Deployment":
		d, err := s.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, err)
		}
		stripServerFields(&d.ObjectMeta)
		d.Status = appsv1.DeploymentStatus{}
		d.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: kind}
		obj = d
	case "StatefulSet":
		sts, err := s.clientset.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get statefulset %s/%s: %w", namespace, name, err)
		}
		stripServerFields(&sts.ObjectMeta)
		sts.Status = appsv1.StatefulSetStatus{}
		sts.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: kind}
		obj = sts
	case "DaemonSet":
		ds, err := s.clientset.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get daemonset %s/%s: %w", namespace, name, err)
		}
		stripServerFields(&ds.ObjectMeta)
		ds.Status = appsv1.DaemonSetStatus{}
		ds.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: kind}
		obj = ds
	default:
		return nil, fmt.Errorf("unsupported workload kind: %s", kind)
	}

	out, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s/%s: %w", namespace, name, err)
	}
	return out, nil
}

func stripServerFields(meta *metav1.ObjectMeta) {
	meta.UID = ""
	meta.ResourceVersion = ""
	meta.Generation = 0
	meta.CreationTimestamp = metav1.Time{}
	meta.ManagedFields = nil
	delete(meta.Annotations, "kubectl.kubernetes.io/last-applied-configuration")
}
