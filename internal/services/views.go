package services

import (
	"context"
	"errors"
	"fmt"

	"sales-dashboard/internal/analytics"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

var ErrUnknownCityKind = errors.New("unknown city view kind")

type CityKind string

const (
	CityProducts  CityKind = "products"
	CityCustomers CityKind = "customers"
)

func ParseCityKind(s string) (CityKind, error) {
	switch k := CityKind(s); k {
	case CityProducts, CityCustomers:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCityKind, s)
	}
}

type CustomerRow struct {
	models.CustomerAggregate
	InvoiceGaps models.GapStats `json:"invoice_gaps"`
}

type CustomersView struct {
	Active     []CustomerRow `json:"active"`
	Inactive   []CustomerRow `json:"inactive"`
	TotalSales float64       `json:"total_sales"`
}

type CustomerDetail struct {
	CustomerRow
	Categories []models.CategoryPreference `json:"categories"`
}

type ProductsView struct {
	Active   []models.ProductAggregate `json:"active"`
	Inactive []models.ProductAggregate `json:"inactive"`
	Bundles  []models.BundleAggregate  `json:"bundles"`
}

type RegionsView struct {
	Governorates []models.GovernorateAggregate `json:"governorates"`
	Summary      models.OverallStats           `json:"summary"`
}

// observe wraps one view computation in a span and an aggregation timer.
func (d *Dataset) observe(ctx context.Context, operation string) (context.Context, func()) {
	ctx, span := observability.StartSpan(ctx, "analytics."+operation)
	stop := observability.TimeAggregation(operation)
	return ctx, func() {
		stop()
		span.End(ctx, d.logger)
	}
}

func locationOnly(f analytics.Filter) analytics.Filter {
	return analytics.Filter{Governorate: f.Governorate, City: f.City}
}

func dateOnly(f analytics.Filter) analytics.Filter {
	return analytics.Filter{StartDate: f.StartDate, EndDate: f.EndDate}
}

// CustomersView lists customers in f's location. With a date range, active
// customers bought inside it and their gaps cover only the window; inactive
// customers keep gaps over their whole history.
func (d *Dataset) CustomersView(ctx context.Context, f analytics.Filter) CustomersView {
	ctx, done := d.observe(ctx, "customers")
	defer done()

	scoped := d.Processor(ctx).Filtered(locationOnly(f))
	view := CustomersView{Inactive: []CustomerRow{}}

	if !f.HasDateRange() {
		all := scoped.Customers()
		view.Active = make([]CustomerRow, 0, len(all))
		for _, c := range all {
			view.Active = append(view.Active, CustomerRow{CustomerAggregate: c, InvoiceGaps: analytics.InvoiceGaps(c.Invoices)})
			view.TotalSales += c.TotalPurchases
		}
		return view
	}

	window := scoped.Filtered(dateOnly(f)).Customers()
	windowInvoices := make(map[string][]models.InvoiceSummary, len(window))
	for _, c := range window {
		windowInvoices[c.Code] = c.Invoices
		view.TotalSales += c.TotalPurchases
	}

	split := scoped.CustomersByActivity(f.StartDate, f.EndDate)
	view.Active = make([]CustomerRow, 0, len(split.Active))
	for _, c := range split.Active {
		view.Active = append(view.Active, CustomerRow{CustomerAggregate: c, InvoiceGaps: analytics.InvoiceGaps(windowInvoices[c.Code])})
	}
	for _, c := range split.Inactive {
		view.Inactive = append(view.Inactive, CustomerRow{CustomerAggregate: c, InvoiceGaps: analytics.InvoiceGaps(c.Invoices)})
	}
	return view
}

// Customer returns one customer's totals, gaps and category spending within
// f.
func (d *Dataset) Customer(ctx context.Context, code string, f analytics.Filter) (CustomerDetail, bool) {
	ctx, done := d.observe(ctx, "customer")
	defer done()

	p := d.Processor(ctx).Filtered(f)
	c, ok := p.Customer(code)
	if !ok {
		return CustomerDetail{}, false
	}
	return CustomerDetail{
		CustomerRow: CustomerRow{CustomerAggregate: c, InvoiceGaps: analytics.InvoiceGaps(c.Invoices)},
		Categories:  p.CategoryPreferences(code),
	}, true
}

// ProductsView splits products in f's location by activity in f's date
// range and adds the bundles bought within the full filter.
func (d *Dataset) ProductsView(ctx context.Context, f analytics.Filter) ProductsView {
	ctx, done := d.observe(ctx, "products")
	defer done()

	p := d.Processor(ctx)
	split := p.Filtered(locationOnly(f)).ProductsByActivity(f.StartDate, f.EndDate)
	return ProductsView{
		Active:   split.Active,
		Inactive: split.Inactive,
		Bundles:  p.Filtered(f).Bundles(),
	}
}

func (d *Dataset) Bundles(ctx context.Context, f analytics.Filter) []models.BundleAggregate {
	ctx, done := d.observe(ctx, "bundles")
	defer done()

	return d.Processor(ctx).Filtered(f).Bundles()
}

func (d *Dataset) RegionsView(ctx context.Context, f analytics.Filter) RegionsView {
	ctx, done := d.observe(ctx, "regions")
	defer done()

	p := d.Processor(ctx).Filtered(f)
	return RegionsView{
		Governorates: p.Regions(),
		Summary:      p.Summary(),
	}
}

// CityView reports one city's products or customers, split by activity in
// f's date range. The location fields of f are ignored.
func (d *Dataset) CityView(ctx context.Context, governorate, city string, kind CityKind, f analytics.Filter) (any, error) {
	if _, err := ParseCityKind(string(kind)); err != nil {
		return nil, err
	}

	ctx, done := d.observe(ctx, "city_"+string(kind))
	defer done()

	p := d.Processor(ctx)
	if kind == CityCustomers {
		return p.CityCustomers(governorate, city, dateOnly(f)), nil
	}
	return p.CityProducts(governorate, city, dateOnly(f)), nil
}

func (d *Dataset) Categories(ctx context.Context, customerCode string, f analytics.Filter) []models.CategoryPreference {
	ctx, done := d.observe(ctx, "categories")
	defer done()

	return d.Processor(ctx).Filtered(f).CategoryPreferences(customerCode)
}

func (d *Dataset) Summary(ctx context.Context, f analytics.Filter) models.OverallStats {
	ctx, done := d.observe(ctx, "summary")
	defer done()

	return d.Processor(ctx).Filtered(f).Summary()
}
