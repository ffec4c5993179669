package reporter

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// GenerateText writes a terminal-friendly summary of the report.
func GenerateText(report *Report, writer io.Writer) error {
	fmt.Fprintf(writer, "GreenOps Advisor Report\n")
	fmt.Fprintf(writer, "Cluster: %s  Namespace: %s  Generated: %s\n\n",
		orDash(report.ClusterName), orDash(report.Namespace),
		report.GeneratedAt.Format("2006-01-02 15:04:05"))

	if report.OpportunityCount == 0 {
		fmt.Fprintln(writer, "No optimization opportunities found.")
		return nil
	}

	w := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORKLOAD\tCATEGORY\tRISK\tCONF\tSAVINGS/MO\tCARBON/MO\tEXPLANATION")
	for _, opp := range report.Opportunities {
		fmt.Fprintf(w, "%s/%s\t%s\t%s\t%.0f%%\t$%.2f\t%.1f g\t%s\n",
			opp.Workload.Namespace, opp.Workload.Name,
			opp.Category, opp.Risk, opp.Confidence*100,
			opp.Savings, opp.CarbonReduction,
			truncate(opp.Explanation, 60),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(writer, "\n%d opportunities, $%.2f/month potential savings, %.1f gCO2e/month reduction\n",
		report.OpportunityCount, report.TotalSavings, report.TotalCarbon)

	for _, stat := range report.CategoryStats {
		fmt.Fprintf(writer, "  %-20s %3d findings  $%.2f/mo\n",
			stat.Category, stat.Count, stat.TotalSavings)
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
