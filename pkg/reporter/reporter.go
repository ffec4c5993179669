// Package reporter renders opportunity findings for people.
package reporter

import (
	"sort"
	"time"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// ReportFormat represents the output format.
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatCSV  ReportFormat = "csv"
)

// Report contains all data for generating reports.
type Report struct {
	ClusterName      string
	Namespace        string
	GeneratedAt      time.Time
	Opportunities    []*models.Opportunity
	TotalSavings     float64
	TotalCarbon      float64
	CategoryStats    map[models.Category]*CategoryStats
	OpportunityCount int
}

// CategoryStats holds statistics per opportunity category.
type CategoryStats struct {
	Category     models.Category
	Count        int
	TotalSavings float64
	TotalCarbon  float64
}

// Reporter generates optimization reports.
type Reporter struct {
	format ReportFormat
}

func New(format ReportFormat) *Reporter {
	return &Reporter{format: format}
}

// Generate assembles a report. Findings are ordered by monthly savings,
// ties broken by confidence, so the biggest wins read first.
func (r *Reporter) Generate(opportunities []*models.Opportunity, clusterName, namespace string) *Report {
	sorted := make([]*models.Opportunity, len(opportunities))
	copy(sorted, opportunities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Savings != sorted[j].Savings {
			return sorted[i].Savings > sorted[j].Savings
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	report := &Report{
		ClusterName:   clusterName,
		Namespace:     namespace,
		GeneratedAt:   time.Now(),
		Opportunities: sorted,
		CategoryStats: make(map[models.Category]*CategoryStats),
	}
	r.calculateStats(report)
	return report
}

func (r *Reporter) calculateStats(report *Report) {
	for _, opp := range report.Opportunities {
		report.OpportunityCount++
		report.TotalSavings += opp.Savings
		report.TotalCarbon += opp.CarbonReduction

		stat, exists := report.CategoryStats[opp.Category]
		if !exists {
			stat = &CategoryStats{Category: opp.Category}
			report.CategoryStats[opp.Category] = stat
		}
		stat.Count++
		stat.TotalSavings += opp.Savings
		stat.TotalCarbon += opp.CarbonReduction
	}
}
