package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

var numberCleaner = strings.NewReplacer(",", "", "\u066c", "", " ", "", "\u00a0", "")

// Number coerces spreadsheet cells to float64. Anything unparseable or
// non-finite becomes 0.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseDecimal(s string) float64 {
	s = numberCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 3:04 PM",
	"2/1/2006 15:04:05",
}

// ParseDate reads ISO dates and the day-first dates spreadsheet exports
// use. Unknown formats give the invalid Date.
func ParseDate(s string) models.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t)
		}
	}
	return models.Date{}
}

// Text renders a cell as a trimmed string. Whole numbers print without a
// fraction so numeric codes survive JSON decoding.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func textOr(v any, fallback string) string {
	if s := Text(v); s != "" {
		return s
	}
	return fallback
}
