package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Unspecified labels a missing category, city or governorate.
const Unspecified = "unspecified"

const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero value marks an unparseable date:
// it never falls inside a range and never wins a latest-date comparison.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func (d Date) Valid() bool        { return !d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// Compare orders valid dates chronologically and puts invalid dates first.
func (d Date) Compare(o Date) int {
	return d.t.Compare(o.t)
}

func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = DateOf(t)
	return nil
}

// Record is one sold line of one invoice. ItemTotal is the authoritative
// revenue of the line.
type Record struct {
	CustomerCode    string  `json:"customer_code" validate:"required"`
	CustomerName    string  `json:"customer_name"`
	City            string  `json:"city"`
	Governorate     string  `json:"governorate"`
	ProductCode     string  `json:"product_code" validate:"required"`
	ProductName     string  `json:"product_name"`
	ProductCategory string  `json:"product_category"`
	ProductPrice    float64 `json:"product_price" validate:"gte=0"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	ItemTotal       float64 `json:"item_total" validate:"gte=0"`
	InvoiceNumber   string  `json:"invoice_number"`
	InvoiceDate     Date    `json:"invoice_date"`
}
