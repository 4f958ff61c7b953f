package ingest

import "strings"

const (
	colCustomerCode    = "customer_code"
	colCustomerName    = "customer_name"
	colCity            = "city"
	colGovernorate     = "governorate"
	colProductCode     = "product_code"
	colProductName     = "product_name"
	colProductCategory = "product_category"
	colProductPrice    = "product_price"
	colQuantity        = "quantity"
	colItemTotal       = "item_total"
	colInvoiceNumber   = "invoice_number"
	colInvoiceDate     = "invoice_date"
)

// Column headers of the ERP sales export.
var arabicColumns = map[string]string{
	"الرقم":                                       colInvoiceNumber,
	"تاريخ الإنشاء":                               colInvoiceDate,
	"العميل - الكود":                              colCustomerCode,
	"العميل - الاسم":                              colCustomerName,
	"العميل - المنطقة - الاسم":                    colCity,
	"العميل - المنطقة - المنطقة الرئيسية - الاسم": colGovernorate,
	"العناصر - المنتج - الكود":                    colProductCode,
	"العناصر - المنتج - الاسم":                    colProductName,
	"العناصر - المنتج - التصنيف":                  colProductCategory,
	"العناصر - المنتج - سعر القطعة":               colProductPrice,
	"العناصر - الكمية":                            colQuantity,
	"العناصر - الكلي":                             colItemTotal,
}

var canonicalColumns = map[string]bool{
	colCustomerCode:    true,
	colCustomerName:    true,
	colCity:            true,
	colGovernorate:     true,
	colProductCode:     true,
	colProductName:     true,
	colProductCategory: true,
	colProductPrice:    true,
	colQuantity:        true,
	colItemTotal:       true,
	colInvoiceNumber:   true,
	colInvoiceDate:     true,
}

// columnFor maps a header to its canonical column. Unknown headers are
// ignored by the caller.
func columnFor(header string) (string, bool) {
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if canonicalColumns[h] {
		return h, true
	}
	if col, ok := arabicColumns[h]; ok {
		return col, true
	}
	lower := strings.ToLower(h)
	if canonicalColumns[lower] {
		return lower, true
	}
	return "", false
}
