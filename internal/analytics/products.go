package analytics

import (
	"slices"

	"sales-dashboard/internal/models"
)

type productAcc struct {
	agg       models.ProductAggregate
	customers set[string]
}

// Products groups lines by product code, sorted by total sales descending.
// SalesPercentage is relative to the processor's own records.
func (p *Processor) Products() []models.ProductAggregate {
	return p.buildProducts(p.records)
}

func (p *Processor) buildProducts(records []models.Record) []models.ProductAggregate {
	products := newGroup[productAcc]()
	var scopeTotal float64

	for _, r := range records {
		scopeTotal += r.ItemTotal

		acc := products.get(r.ProductCode, func() *productAcc {
			agg := models.ProductAggregate{
				Code:     r.ProductCode,
				Name:     r.ProductName,
				Category: r.ProductCategory,
			}
			// resolved once per code for the whole call
			if info, ok := p.lookup(r.ProductCode); ok {
				agg.FunctionCategory = info.FunctionCategory
				agg.FunctionShort = info.FunctionShort
			}
			return &productAcc{agg: agg, customers: make(set[string])}
		})

		acc.agg.Price = r.ProductPrice
		acc.agg.TotalSales += r.ItemTotal
		acc.agg.TotalQuantity += r.Quantity
		acc.agg.OrderCount++
		acc.customers.add(r.CustomerCode)
		acc.agg.Invoices = append(acc.agg.Invoices, models.ProductLine{
			Invoice:      r.InvoiceNumber,
			Date:         r.InvoiceDate,
			Customer:     r.CustomerName,
			CustomerCode: r.CustomerCode,
			Quantity:     r.Quantity,
			Total:        r.ItemTotal,
		})
	}

	result := make([]models.ProductAggregate, 0, products.len())
	for _, acc := range products.values() {
		agg := acc.agg
		agg.CustomerCount = len(acc.customers)
		agg.SalesPercentage = percentOf(agg.TotalSales, scopeTotal)
		agg.AvgPrice = ratio(agg.TotalSales, agg.TotalQuantity)
		slices.SortStableFunc(agg.Invoices, func(a, b models.ProductLine) int {
			return b.Date.Compare(a.Date)
		})
		result = append(result, agg)
	}

	slices.SortStableFunc(result, func(a, b models.ProductAggregate) int {
		return descending(a.TotalSales, b.TotalSales)
	})
	return result
}
