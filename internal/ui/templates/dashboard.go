// Package templates renders the dashboard shell. Every panel starts empty
// and is filled by the SSE endpoints.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"

type page struct {
	Title    string
	Script   string
	Sections []section
}

type section struct {
	Title  string
	ID     string
	Stream string
}

var dashboardPage = page{
	Title:  "Sales Dashboard",
	Script: datastarScript,
	Sections: []section{
		{Title: "Overview", ID: "summary-content", Stream: "/sse/summary"},
		{Title: "Top customers", ID: "customers-content", Stream: "/sse/top-customers"},
		{Title: "Top products", ID: "products-content", Stream: "/sse/top-products"},
		{Title: "Regions", ID: "regions-content", Stream: "/sse/regions"},
	},
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.Script}}"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1f2933}
header{padding:1rem 2rem;background:#1f2933;color:#fff}
form.filters{display:flex;gap:.75rem;flex-wrap:wrap;padding:1rem 2rem;background:#fff;border-bottom:1px solid #e4e7eb}
main{display:grid;gap:1.5rem;padding:1.5rem 2rem}
section{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 2px rgba(0,0,0,.06)}
.summary-cards{display:flex;gap:1rem;flex-wrap:wrap}
.card{display:flex;flex-direction:column;min-width:9rem}
.modern-table{width:100%;border-collapse:collapse}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e4e7eb;text-align:start}
.category-badge{background:#e0f2fe;border-radius:4px;padding:0 .4rem}
.muted{color:#7b8794}
.error{color:#b42318;padding:0 2rem}
</style>
</head>
<body data-signals="{start: '', end: '', governorate: '', city: ''}" data-on-load="@get('/sse/refresh-all')">
<header><h1>{{.Title}}</h1></header>
<form class="filters" data-on-submit="@get('/sse/refresh-all')">
<label>From <input type="date" data-bind-start></label>
<label>To <input type="date" data-bind-end></label>
<label>Governorate <input type="text" data-bind-governorate></label>
<label>City <input type="text" data-bind-city></label>
<button type="submit">Apply</button>
</form>
<div id="error-banner"></div>
<main>
{{range .Sections}}<section>
<h2>{{.Title}} <button type="button" data-on-click="@get('{{.Stream}}')">Refresh</button></h2>
<div id="{{.ID}}" class="muted">Loading...</div>
</section>
{{end}}</main>
</body>
</html>
`))

// Dashboard is the full page component.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return dashboardTemplate.Execute(w, dashboardPage)
	})
}
