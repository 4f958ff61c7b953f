package analytics

import (
	"time"

	"sales-dashboard/internal/models"
)

// Filter narrows a record set. The date range applies only when both bounds
// are valid; empty location fields match everything.
type Filter struct {
	StartDate   models.Date
	EndDate     models.Date
	Governorate string
	City        string
}

func (f Filter) HasDateRange() bool {
	return f.StartDate.Valid() && f.EndDate.Valid()
}

func (f Filter) HasLocation() bool {
	return f.Governorate != "" || f.City != ""
}

func (f Filter) IsZero() bool {
	return !f.HasDateRange() && !f.HasLocation()
}

// FilterByDateRange keeps records dated from start 00:00 through the end of
// the end day. Records with an invalid date are dropped. Missing bounds leave
// the input untouched.
func FilterByDateRange(records []models.Record, start, end models.Date) []models.Record {
	if !start.Valid() || !end.Valid() {
		return records
	}

	from := start.Time()
	until := end.Time().Add(24*time.Hour - time.Millisecond)

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if !r.InvoiceDate.Valid() {
			continue
		}
		t := r.InvoiceDate.Time()
		if t.Before(from) || t.After(until) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterByLocation matches governorate and city exactly. A record with an
// empty governorate or city matches models.Unspecified.
func FilterByLocation(records []models.Record, governorate, city string) []models.Record {
	if governorate == "" && city == "" {
		return records
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if governorate != "" && locationName(r.Governorate) != governorate {
			continue
		}
		if city != "" && locationName(r.City) != city {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Apply runs the date filter first and the location filter second.
func Apply(records []models.Record, f Filter) []models.Record {
	out := records
	if f.HasDateRange() {
		out = FilterByDateRange(out, f.StartDate, f.EndDate)
	}
	if f.HasLocation() {
		out = FilterByLocation(out, f.Governorate, f.City)
	}
	return out
}

// PartitionByActivity splits all into the entities whose key appears in
// filtered and the rest. Both results keep the elements and order of all.
func PartitionByActivity[T any](all, filtered []T, key func(T) string) (active, inactive []T) {
	seen := make(set[string], len(filtered))
	for _, v := range filtered {
		seen.add(key(v))
	}

	active = make([]T, 0, len(filtered))
	inactive = make([]T, 0, len(all)-min(len(all), len(filtered)))
	for _, v := range all {
		if seen.has(key(v)) {
			active = append(active, v)
		} else {
			inactive = append(inactive, v)
		}
	}
	return active, inactive
}

func customerKey(c models.CustomerAggregate) string { return c.Code }

func productKey(p models.ProductAggregate) string { return p.Code }
