package analytics

import (
	"slices"

	"sales-dashboard/internal/models"
)

type customerAcc struct {
	agg      models.CustomerAggregate
	products *group[models.CustomerProduct]
	invoices map[string]int
}

// Customers groups lines by customer code, sorted by total purchases
// descending. Lines sharing an invoice number count as one order.
func (p *Processor) Customers() []models.CustomerAggregate {
	return buildCustomers(p.records)
}

// Customer returns one customer's aggregate within this processor's scope.
func (p *Processor) Customer(code string) (models.CustomerAggregate, bool) {
	var own []models.Record
	for _, r := range p.records {
		if r.CustomerCode == code {
			own = append(own, r)
		}
	}
	if len(own) == 0 {
		return models.CustomerAggregate{}, false
	}
	return buildCustomers(own)[0], true
}

func buildCustomers(records []models.Record) []models.CustomerAggregate {
	customers := newGroup[customerAcc]()

	for _, r := range records {
		c := customers.get(r.CustomerCode, func() *customerAcc {
			return &customerAcc{
				agg: models.CustomerAggregate{
					Code:        r.CustomerCode,
					Name:        r.CustomerName,
					City:        r.City,
					Governorate: r.Governorate,
				},
				products: newGroup[models.CustomerProduct](),
				invoices: make(map[string]int),
			}
		})

		c.agg.TotalPurchases += r.ItemTotal

		product := c.products.get(r.ProductCode, func() *models.CustomerProduct {
			return &models.CustomerProduct{
				Code:     r.ProductCode,
				Name:     r.ProductName,
				Category: r.ProductCategory,
			}
		})
		product.Quantity += r.Quantity
		product.TotalValue += r.ItemTotal
		product.OrderCount++

		if i, ok := c.invoices[r.InvoiceNumber]; ok {
			c.agg.Invoices[i].Total += r.ItemTotal
		} else {
			c.invoices[r.InvoiceNumber] = len(c.agg.Invoices)
			c.agg.Invoices = append(c.agg.Invoices, models.InvoiceSummary{
				Number: r.InvoiceNumber,
				Date:   r.InvoiceDate,
				Total:  r.ItemTotal,
			})
			c.agg.OrderCount++
		}

		if r.InvoiceDate.After(c.agg.LastPurchaseDate) {
			c.agg.LastPurchaseDate = r.InvoiceDate
		}
	}

	result := make([]models.CustomerAggregate, 0, customers.len())
	for _, c := range customers.values() {
		agg := c.agg

		agg.Products = make([]models.CustomerProduct, 0, c.products.len())
		for _, prod := range c.products.values() {
			agg.Products = append(agg.Products, *prod)
		}
		slices.SortStableFunc(agg.Products, func(a, b models.CustomerProduct) int {
			return descending(a.TotalValue, b.TotalValue)
		})

		if agg.Invoices == nil {
			agg.Invoices = []models.InvoiceSummary{}
		}
		slices.SortStableFunc(agg.Invoices, func(a, b models.InvoiceSummary) int {
			return b.Date.Compare(a.Date)
		})

		agg.AvgOrderValue = ratio(agg.TotalPurchases, float64(agg.OrderCount))
		result = append(result, agg)
	}

	slices.SortStableFunc(result, func(a, b models.CustomerAggregate) int {
		return descending(a.TotalPurchases, b.TotalPurchases)
	})
	return result
}
