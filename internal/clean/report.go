package clean

import (
	"math"

	"github.com/psivak/filmwiki/internal/types"
)

// Report computes the data-quality report for an assembled table: row
// count, per-column null rates, duplicate-title count, year range, and the
// decade histogram.
func Report(rows []types.Row) *types.QualityReport {
	report := &types.QualityReport{
		TotalRows:       len(rows),
		NullCounts:      make(map[string]int),
		NullPercentages: make(map[string]float64),
		DecadeHistogram: make(map[int]int),
	}

	titles := make(map[string]int, len(rows))
	for _, row := range rows {
		titles[row.Title]++

		countNull(report, "title", row.Title == "")
		countNull(report, "imdb_id", row.IMDbID == nil)
		countNull(report, "year", row.Year == nil)
		countNull(report, "summary", row.Summary == nil)
		countNull(report, "people", row.People == nil)
		countNull(report, "decade", row.Decade == nil)
		countNull(report, "language", row.Language == nil)

		if row.Year != nil {
			if report.YearMin == nil || *row.Year < *report.YearMin {
				report.YearMin = types.IntPtr(*row.Year)
			}
			if report.YearMax == nil || *row.Year > *report.YearMax {
				report.YearMax = types.IntPtr(*row.Year)
			}
		}
		if row.Decade != nil {
			report.DecadeHistogram[*row.Decade]++
		}
	}

	for _, n := range titles {
		if n > 1 {
			report.Duplicates += n - 1
		}
	}

	if len(rows) > 0 {
		for col, n := range report.NullCounts {
			pct := float64(n) / float64(len(rows)) * 100
			report.NullPercentages[col] = math.Round(pct*100) / 100
		}
	}

	return report
}

func countNull(r *types.QualityReport, column string, isNull bool) {
	if _, ok := r.NullCounts[column]; !ok {
		r.NullCounts[column] = 0
		r.NullPercentages[column] = 0
	}
	if isNull {
		r.NullCounts[column]++
	}
}
