package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// GenerateCSV writes the report as CSV.
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"Namespace",
		"Workload",
		"Kind",
		"Category",
		"Risk",
		"Confidence",
		"Current Cost ($/mo)",
		"Projected Cost ($/mo)",
		"Savings ($/mo)",
		"Carbon Reduction (gCO2e/mo)",
		"Explanation",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, opp := range report.Opportunities {
		row := []string{
			opp.Workload.Namespace,
			opp.Workload.Name,
			opp.Workload.Kind,
			string(opp.Category),
			string(opp.Risk),
			fmt.Sprintf("%.2f", opp.Confidence),
			fmt.Sprintf("%.2f", opp.CurrentCost),
			fmt.Sprintf("%.2f", opp.ProjectedCost),
			fmt.Sprintf("%.2f", opp.Savings),
			fmt.Sprintf("%.2f", opp.CarbonReduction),
			opp.Explanation,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Opportunities", fmt.Sprintf("%d", report.OpportunityCount)})
	w.Write([]string{"Total Monthly Savings", fmt.Sprintf("$%.2f", report.TotalSavings)})
	w.Write([]string{"Total Carbon Reduction", fmt.Sprintf("%.2f gCO2e", report.TotalCarbon)})

	return nil
}
