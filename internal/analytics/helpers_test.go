package analytics

import (
	"testing"
	"time"

	"sales-dashboard/internal/models"
)

func date(t testing.TB, s string) models.Date {
	t.Helper()
	if s == "" {
		return models.Date{}
	}
	parsed, err := time.Parse(models.DateLayout, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return models.DateOf(parsed)
}

type line struct {
	customer string
	invoice  string
	product  string
	qty      float64
	total    float64
	day      string
}

func records(t testing.TB, lines ...line) []models.Record {
	t.Helper()
	out := make([]models.Record, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.Record{
			CustomerCode:    l.customer,
			CustomerName:    "Customer " + l.customer,
			City:            "Nasr City",
			Governorate:     "Cairo",
			ProductCode:     l.product,
			ProductName:     "Product " + l.product,
			ProductCategory: "Care",
			ProductPrice:    10,
			Quantity:        l.qty,
			ItemTotal:       l.total,
			InvoiceNumber:   l.invoice,
			InvoiceDate:     date(t, l.day),
		})
	}
	return out
}

// mixedDataset spans three customers, four products and two governorates.
func mixedDataset(t testing.TB) []models.Record {
	t.Helper()
	recs := records(t,
		line{"C1", "INV1", "P1", 2, 20, "2024-01-05"},
		line{"C1", "INV1", "P2", 1, 10, "2024-01-05"},
		line{"C1", "INV2", "P1", 1, 12.5, "2024-02-10"},
		line{"C2", "INV3", "P1", 3, 30, "2024-01-20"},
		line{"C2", "INV3", "P2", 2, 18, "2024-01-20"},
		line{"C2", "INV3", "P3", 1, 7.25, "2024-01-20"},
		line{"C3", "INV4", "P4", 5, 50, "2024-03-01"},
		line{"C3", "INV5", "P3", 1, 8, ""},
	)
	for i := range recs {
		if recs[i].CustomerCode == "C3" {
			recs[i].Governorate = "Giza"
			recs[i].City = "Dokki"
		}
	}
	return recs
}
