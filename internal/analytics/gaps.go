package analytics

import (
	"math"
	"slices"
	"time"

	"sales-dashboard/internal/models"
)

const day = 24 * time.Hour

// InvoiceGaps measures whole days between consecutive invoices in
// chronological order, whatever order the input is in. Invoices without a
// valid date are ignored; fewer than two dated invoices yield zero stats.
func InvoiceGaps(invoices []models.InvoiceSummary) models.GapStats {
	dates := make([]models.Date, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Date.Valid() {
			dates = append(dates, inv.Date)
		}
	}
	if len(dates) < 2 {
		return models.GapStats{Gaps: []int{}}
	}
	slices.SortFunc(dates, models.Date.Compare)

	stats := models.GapStats{
		Gaps:   make([]int, 0, len(dates)-1),
		MinGap: math.MaxInt,
	}
	var sum int
	for i := 1; i < len(dates); i++ {
		diff := dates[i].Time().Sub(dates[i-1].Time()).Abs()
		gap := int(math.Ceil(float64(diff) / float64(day)))

		stats.Gaps = append(stats.Gaps, gap)
		sum += gap
		stats.MinGap = min(stats.MinGap, gap)
		stats.MaxGap = max(stats.MaxGap, gap)
	}
	stats.AvgGap = float64(sum) / float64(len(stats.Gaps))
	return stats
}
