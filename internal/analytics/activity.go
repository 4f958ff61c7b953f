package analytics

import "sales-dashboard/internal/models"

// CustomersByActivity splits the full customer list by whether each customer
// bought anything between start and end. Both halves carry full-history
// aggregates. Without a complete range every customer is active.
func (p *Processor) CustomersByActivity(start, end models.Date) models.ActivitySplit[models.CustomerAggregate] {
	all := p.Customers()
	if !start.Valid() || !end.Valid() {
		return models.ActivitySplit[models.CustomerAggregate]{Active: all, Inactive: []models.CustomerAggregate{}}
	}

	inWindow := buildCustomers(FilterByDateRange(p.records, start, end))
	active, inactive := PartitionByActivity(all, inWindow, customerKey)
	return models.ActivitySplit[models.CustomerAggregate]{Active: active, Inactive: inactive}
}

// ProductsByActivity is CustomersByActivity for products. Inactive products
// contributed nothing to the window, so their SalesPercentage is zero.
func (p *Processor) ProductsByActivity(start, end models.Date) models.ActivitySplit[models.ProductAggregate] {
	all := p.Products()
	if !start.Valid() || !end.Valid() {
		return models.ActivitySplit[models.ProductAggregate]{Active: all, Inactive: []models.ProductAggregate{}}
	}

	inWindow := p.buildProducts(FilterByDateRange(p.records, start, end))
	active, inactive := PartitionByActivity(all, inWindow, productKey)
	for i := range inactive {
		inactive[i].SalesPercentage = 0
	}
	return models.ActivitySplit[models.ProductAggregate]{Active: active, Inactive: inactive}
}

// CityProducts reports one city's products within f's date range. Two
// aggregations run over the city's records: one over full history and one
// over the window. Active entries come from the window. Inactive entries are
// the historical aggregates of products absent from the window, with
// SalesPercentage zeroed. TotalSales is the window's revenue.
func (p *Processor) CityProducts(governorate, city string, f Filter) models.CityActivity[models.ProductAggregate] {
	history, window := p.cityScopes(governorate, city, f)

	active := p.buildProducts(window)
	inactive := missingFrom(p.buildProducts(history), active, productKey)
	for i := range inactive {
		inactive[i].SalesPercentage = 0
	}

	return models.CityActivity[models.ProductAggregate]{
		Active:     active,
		Inactive:   inactive,
		TotalSales: totalSales(window),
	}
}

// CityCustomers mirrors CityProducts for customers. SalesPercentage carries
// each active customer's share of the window's revenue.
func (p *Processor) CityCustomers(governorate, city string, f Filter) models.CityActivity[models.CustomerAggregate] {
	history, window := p.cityScopes(governorate, city, f)
	windowTotal := totalSales(window)

	active := buildCustomers(window)
	for i := range active {
		active[i].SalesPercentage = percentOf(active[i].TotalPurchases, windowTotal)
	}
	inactive := missingFrom(buildCustomers(history), active, customerKey)

	return models.CityActivity[models.CustomerAggregate]{
		Active:     active,
		Inactive:   inactive,
		TotalSales: windowTotal,
	}
}

func (p *Processor) cityScopes(governorate, city string, f Filter) (history, window []models.Record) {
	history = FilterByLocation(p.records, governorate, city)
	window = history
	if f.HasDateRange() {
		window = FilterByDateRange(history, f.StartDate, f.EndDate)
	}
	return history, window
}

func missingFrom[T any](history, present []T, key func(T) string) []T {
	_, missing := PartitionByActivity(history, present, key)
	return missing
}
