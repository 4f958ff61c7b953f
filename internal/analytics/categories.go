package analytics

import (
	"slices"

	"sales-dashboard/internal/models"
)

type categoryAcc struct {
	pref     models.CategoryPreference
	products set[string]
	invoices set[string]
}

// CategoryPreferences totals spending per category, for one customer when
// customerCode is set and for everyone otherwise. The category is the
// classifier's short label, else the raw product category, else
// models.Unspecified.
func (p *Processor) CategoryPreferences(customerCode string) []models.CategoryPreference {
	records := p.records
	if customerCode != "" {
		records = make([]models.Record, 0)
		for _, r := range p.records {
			if r.CustomerCode == customerCode {
				records = append(records, r)
			}
		}
	}

	categories := newGroup[categoryAcc]()
	scopeTotal := totalSales(records)
	for _, r := range records {
		name := p.categoryOf(r)
		acc := categories.get(name, func() *categoryAcc {
			return &categoryAcc{
				pref:     models.CategoryPreference{Category: name},
				products: make(set[string]),
				invoices: make(set[string]),
			}
		})
		acc.pref.TotalSpent += r.ItemTotal
		acc.pref.Quantity += r.Quantity
		acc.products.add(r.ProductCode)
		acc.invoices.add(r.InvoiceNumber)
	}

	result := make([]models.CategoryPreference, 0, categories.len())
	for _, acc := range categories.values() {
		pref := acc.pref
		pref.ProductCount = len(acc.products)
		pref.InvoiceCount = len(acc.invoices)
		pref.Percentage = percentOf(pref.TotalSpent, scopeTotal)
		pref.AvgPerProduct = ratio(pref.TotalSpent, float64(pref.ProductCount))
		result = append(result, pref)
	}

	slices.SortStableFunc(result, func(a, b models.CategoryPreference) int {
		return descending(a.TotalSpent, b.TotalSpent)
	})
	return result
}

func (p *Processor) categoryOf(r models.Record) string {
	if info, ok := p.lookup(r.ProductCode); ok && info.FunctionShort != "" {
		return info.FunctionShort
	}
	if r.ProductCategory != "" {
		return r.ProductCategory
	}
	return models.Unspecified
}
