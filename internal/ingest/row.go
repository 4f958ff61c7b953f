package ingest

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromRow builds a record from one decoded row keyed by canonical or
// export column names. Rows without a customer or product code are
// rejected. Negative amounts (credit lines) are clamped to zero so the row
// still counts towards its invoice.
func FromRow(row map[string]any) (models.Record, bool) {
	cells := make(map[string]any, len(row))
	for header, v := range row {
		if col, ok := columnFor(header); ok {
			cells[col] = v
		}
	}

	r := models.Record{
		CustomerCode:    Text(cells[colCustomerCode]),
		CustomerName:    Text(cells[colCustomerName]),
		City:            textOr(cells[colCity], models.Unspecified),
		Governorate:     textOr(cells[colGovernorate], models.Unspecified),
		ProductCode:     Text(cells[colProductCode]),
		ProductName:     Text(cells[colProductName]),
		ProductCategory: textOr(cells[colProductCategory], models.Unspecified),
		ProductPrice:    max(Number(cells[colProductPrice]), 0),
		Quantity:        max(Number(cells[colQuantity]), 0),
		ItemTotal:       max(Number(cells[colItemTotal]), 0),
		InvoiceNumber:   Text(cells[colInvoiceNumber]),
		InvoiceDate:     dateCell(cells[colInvoiceDate]),
	}

	if err := validate.Struct(r); err != nil {
		return models.Record{}, false
	}
	return r, true
}

// dateCell reads a date written as text or as a spreadsheet serial number.
func dateCell(v any) models.Date {
	switch d := v.(type) {
	case string:
		if date := ParseDate(d); date.Valid() {
			return date
		}
		if serial, err := strconv.ParseFloat(strings.TrimSpace(d), 64); err == nil {
			return serialDate(serial)
		}
	case json.Number:
		if serial, err := d.Float64(); err == nil {
			return serialDate(serial)
		}
	case float64:
		return serialDate(d)
	case int:
		return serialDate(float64(d))
	case int64:
		return serialDate(float64(d))
	}
	return models.Date{}
}

// serialDate converts a 1900-system serial; the fraction is the time of day.
func serialDate(serial float64) models.Date {
	if serial < 1 {
		return models.Date{}
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return models.Date{}
	}
	return models.DateOf(t)
}
