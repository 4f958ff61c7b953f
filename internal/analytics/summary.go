package analytics

import "sales-dashboard/internal/models"

// Summary reports dataset-wide totals. Customer and product counts come from
// the full aggregations so they follow the same grouping rules.
func (p *Processor) Summary() models.OverallStats {
	customers := p.Customers()
	products := p.Products()

	invoices := make(set[string])
	for _, r := range p.records {
		invoices.add(r.InvoiceNumber)
	}
	sales := totalSales(p.records)

	stats := models.OverallStats{
		TotalCustomers: len(customers),
		TotalProducts:  len(products),
		TotalInvoices:  len(invoices),
		TotalSales:     sales,
		AvgOrderValue:  ratio(sales, float64(len(invoices))),
	}
	if len(customers) > 0 {
		stats.TopCustomer = &customers[0]
	}
	if len(products) > 0 {
		stats.TopProduct = &products[0]
	}
	return stats
}
