package analytics

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sales-dashboard/internal/models"
)

func TestInvoiceGaps(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  models.GapStats
	}{
		{
			name:  "no invoices",
			dates: nil,
			want:  models.GapStats{Gaps: []int{}},
		},
		{
			name:  "single invoice",
			dates: []string{"2024-01-01"},
			want:  models.GapStats{Gaps: []int{}},
		},
		{
			name:  "newest first input",
			dates: []string{"2024-01-10", "2024-01-04", "2024-01-01"},
			want:  models.GapStats{Gaps: []int{3, 6}, AvgGap: 4.5, MinGap: 3, MaxGap: 6},
		},
		{
			name:  "unordered input",
			dates: []string{"2024-01-04", "2024-01-10", "2024-01-01"},
			want:  models.GapStats{Gaps: []int{3, 6}, AvgGap: 4.5, MinGap: 3, MaxGap: 6},
		},
		{
			name:  "same day",
			dates: []string{"2024-01-01", "2024-01-01"},
			want:  models.GapStats{Gaps: []int{0}, AvgGap: 0, MinGap: 0, MaxGap: 0},
		},
		{
			name:  "undated ignored",
			dates: []string{"2024-02-01", "", "2024-01-01"},
			want:  models.GapStats{Gaps: []int{31}, AvgGap: 31, MinGap: 31, MaxGap: 31},
		},
		{
			name:  "only one dated",
			dates: []string{"", "2024-01-01", ""},
			want:  models.GapStats{Gaps: []int{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := make([]models.InvoiceSummary, 0, len(tt.dates))
			for i, d := range tt.dates {
				invoices = append(invoices, models.InvoiceSummary{
					Number: "INV" + string(rune('1'+i)),
					Date:   date(t, d),
				})
			}

			got := InvoiceGaps(invoices)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("InvoiceGaps() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
