package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenops/greenops-advisor/pkg/advisor"
	"github.com/greenops/greenops-advisor/pkg/config"
	"github.com/greenops/greenops-advisor/pkg/datasource"
	"github.com/greenops/greenops-advisor/pkg/detector"
	"github.com/greenops/greenops-advisor/pkg/models"
	"github.com/greenops/greenops-advisor/pkg/patch"
	"github.com/greenops/greenops-advisor/pkg/recommender"
	"github.com/greenops/greenops-advisor/pkg/registry"
	"github.com/greenops/greenops-advisor/pkg/reporter"
	"github.com/greenops/greenops-advisor/pkg/scanner"
	"github.com/greenops/greenops-advisor/pkg/storage"
)

var (
	// Scan flags
	namespace     string
	allNamespaces bool
	outputFormat  string
	saveResults   bool
	clusterID     string
	plainHTTP     bool
	verbose       bool

	// Recommend flags
	emitPatch bool

	// Report flags
	reportLimit int

	cfg *config.Config
)

func main() {
	cfg = config.New()

	rootCmd := &cobra.Command{
		Use:   "greenops",
		Short: "Kubernetes cost and carbon advisor",
		Long:  `Scan Kubernetes clusters for cost and carbon optimization opportunities and generate AI-assisted rightsizing recommendations.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose || cfg.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect optimization opportunities",
		Run:   runScan,
	}
	scanCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to scan")
	scanCmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "Scan all namespaces")
	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, csv")
	scanCmd.Flags().BoolVar(&saveResults, "save", false, "Save opportunities to database")
	scanCmd.Flags().StringVar(&clusterID, "cluster-id", "default", "Cluster identifier")
	scanCmd.Flags().BoolVar(&plainHTTP, "registry-plain-http", false, "Use plain HTTP for image registry lookups")

	recommendCmd := &cobra.Command{
		Use:   "recommend <namespace> <workload>",
		Short: "Generate a rightsizing recommendation for one workload",
		Args:  cobra.ExactArgs(2),
		Run:   runRecommend,
	}
	recommendCmd.Flags().BoolVar(&emitPatch, "patch", false, "Emit an applicable YAML patch")
	recommendCmd.Flags().BoolVar(&saveResults, "save", false, "Save the recommendation to database")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored opportunities",
		Run:   runReport,
	}
	reportCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Restrict to one namespace")
	reportCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, csv")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 50, "Maximum findings to include")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func format() string {
	if outputFormat != "" {
		return outputFormat
	}
	return cfg.OutputFormat
}

// metricsSource prefers Prometheus and falls back to the in-cluster
// metrics API when Prometheus is unreachable.
func metricsSource(ctx context.Context, scan *scanner.Scanner) datasource.MetricsSource {
	if !cfg.UseMetricsServer && cfg.PrometheusURL != "" {
		prom, err := datasource.NewPrometheusSource(cfg.PrometheusURL, cfg.CarbonIntensity)
		if err == nil && prom.IsAvailable(ctx) {
			slog.Info("using Prometheus metrics", "url", cfg.PrometheusURL)
			return prom
		}
		slog.Warn("Prometheus not reachable, falling back to metrics-server", "url", cfg.PrometheusURL)
	}
	return datasource.NewMetricsServerSource(scan.Clientset(), scan.MetricsClient())
}

func openStore() storage.Store {
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to initialize storage: %v", err)
	}
	return store
}

func runScan(cmd *cobra.Command, args []string) {
	if namespace == "" && !allNamespaces {
		fatal("either --namespace or --all-namespaces must be specified")
	}
	if err := cfg.Validate(); err != nil {
		fatal("%v", err)
	}

	scan, err := scanner.New()
	if err != nil {
		fatal("initializing scanner: %v", err)
	}

	ctx := context.Background()
	source := metricsSource(ctx, scan)

	var store storage.Store
	if saveResults {
		store = openStore()
		defer store.Close()
	}

	det := detector.New(registry.NewResolver(plainHTTP), detector.Config{
		BulkMultiplier:       cfg.BulkMultiplier,
		ImageSizeThresholdMB: cfg.ImageSizeMB,
	})

	targets, err := scan.ListTargets(ctx, namespace, allNamespaces)
	if err != nil {
		fatal("scanning cluster: %v", err)
	}
	slog.Info("scan started", "targets", len(targets), "metrics_source", source.Name())

	var opportunities []*models.Opportunity
	for _, target := range targets {
		sample, err := source.Collect(ctx, &target.Workload, cfg.MetricsWindow)
		if err != nil {
			slog.Warn("metrics collection failed, skipping workload",
				"workload", target.Workload.Name,
				"namespace", target.Workload.Namespace,
				"error", err,
			)
			continue
		}
		sample.Workload.ClusterID = clusterID

		spec := target.PodSpec
		for _, opp := range det.Detect(ctx, sample, &spec) {
			opp := opp
			opportunities = append(opportunities, &opp)

			if store != nil {
				if err := store.SaveOpportunity(ctx, &opp); err != nil {
					slog.Warn("failed to save opportunity", "workload", opp.Workload.Name, "error", err)
				}
			}
		}
	}

	writeReport(opportunities)
}

func runRecommend(cmd *cobra.Command, args []string) {
	ns, workload := args[0], args[1]

	if err := cfg.Validate(); err != nil {
		fatal("%v", err)
	}

	scan, err := scanner.New()
	if err != nil {
		fatal("initializing scanner: %v", err)
	}

	ctx := context.Background()

	targets, err := scan.ListTargets(ctx, ns, false)
	if err != nil {
		fatal("listing workloads: %v", err)
	}
	var target *scanner.Target
	for i := range targets {
		if targets[i].Workload.Name == workload {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		fatal("workload %s not found in namespace %s", workload, ns)
	}

	source := metricsSource(ctx, scan)
	sample, err := source.Collect(ctx, &target.Workload, cfg.MetricsWindow)
	if err != nil {
		fatal("collecting metrics for %s/%s: %v", ns, workload, err)
	}

	backend, err := advisor.NewBackend(advisor.Options{
		Provider:       cfg.AIProvider,
		OllamaURL:      cfg.OllamaURL,
		OllamaModel:    cfg.OllamaModel,
		OpenAIKey:      cfg.OpenAIKey,
		OpenAIModel:    cfg.OpenAIModel,
		AnthropicKey:   cfg.AnthropicKey,
		AnthropicModel: cfg.AnthropicModel,
		Timeout:        cfg.AITimeout,
	})
	if err != nil {
		fatal("%v", err)
	}

	est := recommender.New(
		recommender.WithSafetyBuffer(cfg.SafetyBuffer),
		recommender.WithReductionThreshold(cfg.ReductionThreshold),
	)
	rec := advisor.NewOrchestrator(backend, est, cfg.AITimeout).Recommend(ctx, sample)

	if saveResults {
		store := openStore()
		defer store.Close()
		if err := store.SaveRecommendation(ctx, rec); err != nil {
			slog.Warn("failed to save recommendation", "error", err)
		}
	}

	printRecommendation(rec)

	if emitPatch {
		original, err := scan.WorkloadDocument(ctx, ns, target.Workload.Kind, workload)
		if err != nil {
			slog.Warn("could not fetch live manifest, emitting template patch", "error", err)
			original = nil
		}
		text, merged := patch.New().Generate(rec, original, target.Containers...)
		mode := "template"
		if merged {
			mode = "merge"
		}
		fmt.Printf("\n--- patch (%s mode) ---\n%s", mode, text)
	}
}

func printRecommendation(rec *models.Recommendation) {
	fmt.Printf("Recommendation for %s/%s (%s)\n\n",
		rec.Workload.Namespace, rec.Workload.Name, rec.Provenance)
	fmt.Printf("  %s\n\n", rec.Explanation)
	fmt.Printf("  Recommended CPU:    %.3f cores\n", rec.RecommendedCPU)
	fmt.Printf("  Recommended Memory: %.3f GB\n", rec.RecommendedMemory)
	fmt.Printf("  Estimated Savings:  $%.2f/month\n", rec.EstimatedSavings)
	fmt.Printf("  Risk:               %s\n", rec.Risk)
	fmt.Printf("  Next Step:          %s\n", rec.NextStep)
}

func runReport(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	ctx := context.Background()
	opportunities, err := store.ListOpportunities(ctx, namespace, reportLimit)
	if err != nil {
		fatal("listing opportunities: %v", err)
	}

	writeReport(opportunities)
}

func writeReport(opportunities []*models.Opportunity) {
	f := strings.ToLower(format())
	rep := reporter.New(reporter.ReportFormat(f))
	report := rep.Generate(opportunities, clusterID, namespace)

	var err error
	switch f {
	case "csv":
		err = reporter.GenerateCSV(report, os.Stdout)
	case "", "text":
		err = reporter.GenerateText(report, os.Stdout)
	default:
		fatal("unsupported output format: %s", f)
	}
	if err != nil {
		fatal("writing report: %v", err)
	}
}
