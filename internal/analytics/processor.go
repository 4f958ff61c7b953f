// Package analytics turns flat invoice-line records into customer, product,
// bundle, region and category views.
//
// A Processor is an immutable snapshot: every method recomputes its result
// from the records it was built with and returns freshly allocated values, so
// one Processor can serve concurrent readers.
package analytics

import (
	"cmp"

	"sales-dashboard/internal/classifier"
	"sales-dashboard/internal/models"
)

type Processor struct {
	records    []models.Record
	classifier classifier.Lookup
}

type Option func(*Processor)

// WithClassifier attaches a product classifier. A nil lookup is allowed and
// makes category resolution fall back to the raw product category.
func WithClassifier(lookup classifier.Lookup) Option {
	return func(p *Processor) {
		p.classifier = lookup
	}
}

func NewProcessor(records []models.Record, opts ...Option) *Processor {
	p := &Processor{records: records}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Records() []models.Record {
	return p.records
}

func (p *Processor) Len() int {
	return len(p.records)
}

// Filtered returns a processor over the records matching f, sharing the
// classifier.
func (p *Processor) Filtered(f Filter) *Processor {
	return &Processor{
		records:    Apply(p.records, f),
		classifier: p.classifier,
	}
}

func (p *Processor) lookup(code string) (classifier.Info, bool) {
	if p.classifier == nil {
		return classifier.Info{}, false
	}
	return p.classifier.Lookup(code)
}

// group keeps values keyed by string in first-seen order, so equal sort keys
// fall back to discovery order.
type group[V any] struct {
	index map[string]*V
	order []*V
}

func newGroup[V any]() *group[V] {
	return &group[V]{index: make(map[string]*V)}
}

func (g *group[V]) get(key string, init func() *V) *V {
	if v, ok := g.index[key]; ok {
		return v
	}
	v := init()
	g.index[key] = v
	g.order = append(g.order, v)
	return v
}

func (g *group[V]) values() []*V {
	return g.order
}

func (g *group[V]) len() int {
	return len(g.order)
}

type set[T comparable] map[T]struct{}

func (s set[T]) add(v T) {
	s[v] = struct{}{}
}

func (s set[T]) has(v T) bool {
	_, ok := s[v]
	return ok
}

func descending[T cmp.Ordered](a, b T) int {
	return cmp.Compare(b, a)
}

func percentOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func totalSales(records []models.Record) float64 {
	var sum float64
	for _, r := range records {
		sum += r.ItemTotal
	}
	return sum
}

func locationName(s string) string {
	if s == "" {
		return models.Unspecified
	}
	return s
}
