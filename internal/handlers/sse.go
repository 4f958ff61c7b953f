package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/analytics"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	maxTableRows = 50
	maxProducts  = 20
	maxBundles   = 10
	maxRegions   = 30
)

var tableFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
}

var summaryTemplate = template.Must(template.New("summary").Funcs(tableFuncs).Parse(`
<div id="summary-content" class="summary-cards">
<div class="card"><span>Total sales</span><strong>{{money .TotalSales}}</strong></div>
<div class="card"><span>Invoices</span><strong>{{.TotalInvoices}}</strong></div>
<div class="card"><span>Customers</span><strong>{{.TotalCustomers}}</strong></div>
<div class="card"><span>Products</span><strong>{{.TotalProducts}}</strong></div>
<div class="card"><span>Avg order</span><strong>{{money .AvgOrderValue}}</strong></div>
{{with .TopCustomer}}<div class="card"><span>Top customer</span><strong>{{.Name}}</strong><small>{{money .TotalPurchases}}</small></div>{{end}}
{{with .TopProduct}}<div class="card"><span>Top product</span><strong>{{.Name}}</strong><small>{{money .TotalSales}}</small></div>{{end}}
</div>`))

var customersTemplate = template.Must(template.New("customers").Funcs(tableFuncs).Parse(`
<div id="customers-content">
<table class="modern-table">
<thead><tr><th>Code</th><th>Customer</th><th>Governorate</th><th>City</th><th>Purchases</th><th>Orders</th><th>Avg gap (days)</th><th>Last purchase</th></tr></thead>
<tbody>
{{range .Active}}<tr>
<td>{{.Code}}</td>
<td>{{.Name}}</td>
<td>{{.Governorate}}</td>
<td>{{.City}}</td>
<td><strong>{{money .TotalPurchases}}</strong></td>
<td>{{.OrderCount}}</td>
<td>{{printf "%.1f" .InvoiceGaps.AvgGap}}</td>
<td>{{.LastPurchaseDate}}</td>
</tr>{{end}}
</tbody>
</table>
{{if .Inactive}}<p class="muted">{{len .Inactive}} customers without purchases in the selected period</p>{{end}}
</div>`))

var productsTemplate = template.Must(template.New("products").Funcs(tableFuncs).Parse(`
<div id="products-content">
<table class="modern-table">
<thead><tr><th>Code</th><th>Product</th><th>Category</th><th>Sales</th><th>Quantity</th><th>Customers</th><th>Share</th></tr></thead>
<tbody>
{{range .Active}}<tr>
<td>{{.Code}}</td>
<td>{{.Name}}</td>
<td><span class="category-badge">{{if .FunctionShort}}{{.FunctionShort}}{{else}}{{.Category}}{{end}}</span></td>
<td><strong>{{money .TotalSales}}</strong></td>
<td>{{.TotalQuantity}}</td>
<td>{{.CustomerCount}}</td>
<td>{{pct .SalesPercentage}}</td>
</tr>{{end}}
</tbody>
</table>
{{if .Bundles}}<h3>Bought together</h3>
<ul class="bundles">{{range .Bundles}}<li>{{(index .Products 0).Name}} + {{(index .Products 1).Name}} <small>{{.Count}} invoices, {{.CustomerCount}} customers</small></li>{{end}}</ul>{{end}}
</div>`))

var regionsTemplate = template.Must(template.New("regions").Funcs(tableFuncs).Parse(`
<div id="regions-content">
<table class="modern-table">
<thead><tr><th>Governorate</th><th>Sales</th><th>Customers</th><th>Cities</th><th>Invoices</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Name}}</td>
<td><strong>{{money .TotalSales}}</strong></td>
<td>{{.CustomerCount}}</td>
<td>{{.CityCount}}</td>
<td>{{.InvoiceCount}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(`<div id="error-banner" class="error">{{.}}</div>`))

type SSEHandlers struct {
	dataset *services.Dataset
	logger  *slog.Logger
}

func NewSSEHandlers(dataset *services.Dataset, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dataset: dataset,
		logger:  logger,
	}
}

// filterSignals mirrors the dashboard's filter inputs.
type filterSignals struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Governorate string `json:"governorate"`
	City        string `json:"city"`
}

// signalFilter reads the filter from datastar signals when the request
// carries them, else from the plain query string.
func signalFilter(r *http.Request) (analytics.Filter, error) {
	if r.Method == http.MethodGet && !r.URL.Query().Has("datastar") {
		return parseFilter(r)
	}

	var s filterSignals
	if err := datastar.ReadSignals(r, &s); err != nil {
		return analytics.Filter{}, fmt.Errorf("read signals: %w", err)
	}
	return newFilter(s.Start, s.End, s.Governorate, s.City)
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// stream opens the event stream and resolves the filter. On a bad filter it
// patches the error banner and returns ok=false.
func (h *SSEHandlers) stream(w http.ResponseWriter, r *http.Request) (*datastar.ServerSentEventGenerator, analytics.Filter, bool) {
	f, err := signalFilter(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.logger.Warn("invalid dashboard filter", "error", err)
		banner, renderErr := render(errorTemplate, err.Error())
		if renderErr == nil {
			_ = sse.PatchElements(banner)
		}
		return sse, f, false
	}
	_ = sse.PatchElements(`<div id="error-banner"></div>`)
	return sse, f, true
}

// patch renders one fragment and sends it with the matching signals.
func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, t *template.Template, data any, signals map[string]any) {
	html, err := render(t, data)
	if err != nil {
		h.logger.Error("render fragment", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Debug("patch elements", "template", t.Name(), "error", err)
		return
	}

	payload, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal signals", "template", t.Name(), "error", err)
		return
	}
	if err := sse.PatchSignals(payload); err != nil {
		h.logger.Debug("patch signals", "template", t.Name(), "error", err)
	}
}

func (h *SSEHandlers) sendSummary(r *http.Request, sse *datastar.ServerSentEventGenerator, f analytics.Filter) {
	summary := h.dataset.Summary(r.Context(), f)
	h.patch(sse, summaryTemplate, summary, map[string]any{"summary": summary})
}

func (h *SSEHandlers) sendCustomers(r *http.Request, sse *datastar.ServerSentEventGenerator, f analytics.Filter) {
	view := h.dataset.CustomersView(r.Context(), f)
	view.Active = head(view.Active, maxTableRows)
	h.patch(sse, customersTemplate, view, map[string]any{
		"customersData": customerChart(view.Active),
		"inactiveCount": len(view.Inactive),
	})
}

func (h *SSEHandlers) sendProducts(r *http.Request, sse *datastar.ServerSentEventGenerator, f analytics.Filter) {
	view := h.dataset.ProductsView(r.Context(), f)
	view.Active = head(view.Active, maxProducts)
	view.Bundles = head(view.Bundles, maxBundles)
	h.patch(sse, productsTemplate, view, map[string]any{
		"productsData": productChart(view.Active),
	})
}

func (h *SSEHandlers) sendRegions(r *http.Request, sse *datastar.ServerSentEventGenerator, f analytics.Filter) {
	governorates := head(h.dataset.RegionsView(r.Context(), f).Governorates, maxRegions)
	h.patch(sse, regionsTemplate, governorates, map[string]any{
		"regionsData": regionChart(governorates),
	})
}

func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if sse, f, ok := h.stream(w, r); ok {
		h.sendSummary(r, sse, f)
	}
}

func (h *SSEHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	if sse, f, ok := h.stream(w, r); ok {
		h.sendCustomers(r, sse, f)
	}
}

func (h *SSEHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	if sse, f, ok := h.stream(w, r); ok {
		h.sendProducts(r, sse, f)
	}
}

func (h *SSEHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	if sse, f, ok := h.stream(w, r); ok {
		h.sendRegions(r, sse, f)
	}
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse, f, ok := h.stream(w, r)
	if !ok {
		return
	}
	h.sendSummary(r, sse, f)
	h.sendCustomers(r, sse, f)
	h.sendProducts(r, sse, f)
	h.sendRegions(r, sse, f)
}

// chartPoint is the compact series shape the dashboard charts read.
type chartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

func customerChart(rows []services.CustomerRow) []chartPoint {
	points := make([]chartPoint, 0, len(rows))
	for _, c := range rows {
		points = append(points, chartPoint{Label: c.Name, Value: c.TotalPurchases})
	}
	return points
}

func productChart(products []models.ProductAggregate) []chartPoint {
	points := make([]chartPoint, 0, len(products))
	for _, p := range products {
		points = append(points, chartPoint{Label: p.Name, Value: p.TotalSales})
	}
	return points
}

func regionChart(governorates []models.GovernorateAggregate) []chartPoint {
	points := make([]chartPoint, 0, len(governorates))
	for _, g := range governorates {
		points = append(points, chartPoint{Label: g.Name, Value: g.TotalSales})
	}
	return points
}
