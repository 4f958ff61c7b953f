package analytics

import (
	"slices"

	"sales-dashboard/internal/models"
)

type cityAcc struct {
	agg       models.CityAggregate
	customers set[string]
	products  set[string]
	invoices  set[string]
}

type governorateAcc struct {
	agg       models.GovernorateAggregate
	customers set[string]
	products  set[string]
	invoices  set[string]
	cities    *group[cityAcc]
}

// Regions groups sales by governorate and then city. Missing names are
// grouped under models.Unspecified so regional totals still add up to total
// sales. Both levels are sorted by total sales descending.
func (p *Processor) Regions() []models.GovernorateAggregate {
	governorates := newGroup[governorateAcc]()

	for _, r := range p.records {
		govName := locationName(r.Governorate)
		gov := governorates.get(govName, func() *governorateAcc {
			return &governorateAcc{
				agg:       models.GovernorateAggregate{Name: govName},
				customers: make(set[string]),
				products:  make(set[string]),
				invoices:  make(set[string]),
				cities:    newGroup[cityAcc](),
			}
		})

		cityName := locationName(r.City)
		city := gov.cities.get(cityName, func() *cityAcc {
			return &cityAcc{
				agg:       models.CityAggregate{Name: cityName},
				customers: make(set[string]),
				products:  make(set[string]),
				invoices:  make(set[string]),
			}
		})

		gov.agg.TotalSales += r.ItemTotal
		gov.customers.add(r.CustomerCode)
		gov.products.add(r.ProductCode)
		gov.invoices.add(r.InvoiceNumber)

		city.agg.TotalSales += r.ItemTotal
		city.customers.add(r.CustomerCode)
		city.products.add(r.ProductCode)
		city.invoices.add(r.InvoiceNumber)
	}

	result := make([]models.GovernorateAggregate, 0, governorates.len())
	for _, gov := range governorates.values() {
		agg := gov.agg
		agg.CustomerCount = len(gov.customers)
		agg.ProductCount = len(gov.products)
		agg.InvoiceCount = len(gov.invoices)
		agg.CityCount = gov.cities.len()

		agg.Cities = make([]models.CityAggregate, 0, gov.cities.len())
		for _, city := range gov.cities.values() {
			c := city.agg
			c.CustomerCount = len(city.customers)
			c.ProductCount = len(city.products)
			c.InvoiceCount = len(city.invoices)
			agg.Cities = append(agg.Cities, c)
		}
		slices.SortStableFunc(agg.Cities, func(a, b models.CityAggregate) int {
			return descending(a.TotalSales, b.TotalSales)
		})

		result = append(result, agg)
	}

	slices.SortStableFunc(result, func(a, b models.GovernorateAggregate) int {
		return descending(a.TotalSales, b.TotalSales)
	})
	return result
}
