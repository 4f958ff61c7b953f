package analytics

import (
	"cmp"
	"slices"

	"sales-dashboard/internal/models"
)

// MinBundleCount is the number of invoices a pair must share to be reported.
const MinBundleCount = 2

type basket struct {
	number       string
	customer     string
	customerCode string
	date         models.Date
	products     []models.ProductRef
	seen         set[string]
}

type pairKey struct {
	first, second string
}

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{first: a, second: b}
}

func (k pairKey) String() string {
	return k.first + "\x00" + k.second
}

func (k pairKey) compare(o pairKey) int {
	if c := cmp.Compare(k.first, o.first); c != 0 {
		return c
	}
	return cmp.Compare(k.second, o.second)
}

type bundleAcc struct {
	key       pairKey
	agg       models.BundleAggregate
	customers set[string]
}

// Bundles counts product pairs bought on the same invoice. Each invoice
// contributes every unordered pair of its distinct products once. Pairs seen
// on fewer than MinBundleCount invoices are dropped. Results are ordered by
// count descending, then by product codes.
func (p *Processor) Bundles() []models.BundleAggregate {
	baskets := newGroup[basket]()
	for _, r := range p.records {
		b := baskets.get(r.InvoiceNumber, func() *basket {
			return &basket{
				number:       r.InvoiceNumber,
				customer:     r.CustomerName,
				customerCode: r.CustomerCode,
				date:         r.InvoiceDate,
				seen:         make(set[string]),
			}
		})
		if b.seen.has(r.ProductCode) {
			continue
		}
		b.seen.add(r.ProductCode)
		b.products = append(b.products, models.ProductRef{
			Code:     r.ProductCode,
			Name:     r.ProductName,
			Category: r.ProductCategory,
		})
	}

	pairs := newGroup[bundleAcc]()
	for _, b := range baskets.values() {
		for i := 0; i < len(b.products); i++ {
			for j := i + 1; j < len(b.products); j++ {
				left, right := b.products[i], b.products[j]
				key := newPairKey(left.Code, right.Code)
				if left.Code != key.first {
					left, right = right, left
				}

				acc := pairs.get(key.String(), func() *bundleAcc {
					return &bundleAcc{
						key:       key,
						agg:       models.BundleAggregate{Products: [2]models.ProductRef{left, right}},
						customers: make(set[string]),
					}
				})

				acc.agg.Count++
				acc.customers.add(b.customerCode)
				acc.agg.Invoices = append(acc.agg.Invoices, models.BundleInvoice{
					Invoice:      b.number,
					Customer:     b.customer,
					CustomerCode: b.customerCode,
					Date:         b.date,
				})
			}
		}
	}

	invoiceCount := float64(baskets.len())
	result := make([]bundleAcc, 0, pairs.len())
	for _, acc := range pairs.values() {
		if acc.agg.Count < MinBundleCount {
			continue
		}
		acc.agg.CustomerCount = len(acc.customers)
		acc.agg.Support = percentOf(float64(acc.agg.Count), invoiceCount)
		result = append(result, *acc)
	}

	slices.SortFunc(result, func(a, b bundleAcc) int {
		if c := descending(a.agg.Count, b.agg.Count); c != 0 {
			return c
		}
		return a.key.compare(b.key)
	})

	bundles := make([]models.BundleAggregate, len(result))
	for i, acc := range result {
		bundles[i] = acc.agg
	}
	return bundles
}
