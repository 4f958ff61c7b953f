package models

type CustomerProduct struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Quantity   float64 `json:"quantity"`
	TotalValue float64 `json:"total_value"`
	OrderCount int     `json:"order_count"`
}

type InvoiceSummary struct {
	Number string  `json:"number"`
	Date   Date    `json:"date"`
	Total  float64 `json:"total"`
}

type CustomerAggregate struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	City             string            `json:"city"`
	Governorate      string            `json:"governorate"`
	TotalPurchases   float64           `json:"total_purchases"`
	OrderCount       int               `json:"order_count"`
	AvgOrderValue    float64           `json:"avg_order_value"`
	LastPurchaseDate Date              `json:"last_purchase_date"`
	SalesPercentage  float64           `json:"sales_percentage,omitempty"`
	Products         []CustomerProduct `json:"products"`
	Invoices         []InvoiceSummary  `json:"invoices"`
}

type ProductLine struct {
	Invoice      string  `json:"invoice"`
	Date         Date    `json:"date"`
	Customer     string  `json:"customer"`
	CustomerCode string  `json:"customer_code"`
	Quantity     float64 `json:"quantity"`
	Total        float64 `json:"total"`
}

type ProductAggregate struct {
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	Category         string        `json:"category"`
	FunctionCategory string        `json:"function_category,omitempty"`
	FunctionShort    string        `json:"function_short,omitempty"`
	Price            float64       `json:"price"`
	TotalSales       float64       `json:"total_sales"`
	TotalQuantity    float64       `json:"total_quantity"`
	OrderCount       int           `json:"order_count"`
	CustomerCount    int           `json:"customer_count"`
	SalesPercentage  float64       `json:"sales_percentage"`
	AvgPrice         float64       `json:"avg_price"`
	Invoices         []ProductLine `json:"invoices"`
}

type ProductRef struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type BundleInvoice struct {
	Invoice      string `json:"invoice"`
	Customer     string `json:"customer"`
	CustomerCode string `json:"customer_code"`
	Date         Date   `json:"date"`
}

type BundleAggregate struct {
	Products      [2]ProductRef   `json:"products"`
	Count         int             `json:"count"`
	CustomerCount int             `json:"customer_count"`
	Support       float64         `json:"support"`
	Invoices      []BundleInvoice `json:"invoices"`
}

type CityAggregate struct {
	Name          string  `json:"name"`
	TotalSales    float64 `json:"total_sales"`
	CustomerCount int     `json:"customer_count"`
	ProductCount  int     `json:"product_count"`
	InvoiceCount  int     `json:"invoice_count"`
}

type GovernorateAggregate struct {
	Name          string          `json:"name"`
	TotalSales    float64         `json:"total_sales"`
	CustomerCount int             `json:"customer_count"`
	CityCount     int             `json:"city_count"`
	ProductCount  int             `json:"product_count"`
	InvoiceCount  int             `json:"invoice_count"`
	Cities        []CityAggregate `json:"cities"`
}

type CategoryPreference struct {
	Category      string  `json:"category"`
	TotalSpent    float64 `json:"total_spent"`
	Quantity      float64 `json:"quantity"`
	ProductCount  int     `json:"product_count"`
	InvoiceCount  int     `json:"invoice_count"`
	Percentage    float64 `json:"percentage"`
	AvgPerProduct float64 `json:"avg_per_product"`
}

type GapStats struct {
	Gaps   []int   `json:"gaps"`
	AvgGap float64 `json:"avg_gap"`
	MinGap int     `json:"min_gap"`
	MaxGap int     `json:"max_gap"`
}

type OverallStats struct {
	TotalCustomers int                `json:"total_customers"`
	TotalProducts  int                `json:"total_products"`
	TotalInvoices  int                `json:"total_invoices"`
	TotalSales     float64            `json:"total_sales"`
	AvgOrderValue  float64            `json:"avg_order_value"`
	TopCustomer    *CustomerAggregate `json:"top_customer"`
	TopProduct     *ProductAggregate  `json:"top_product"`
}

// ActivitySplit separates entities seen inside a date window from those
// only seen outside it.
type ActivitySplit[T any] struct {
	Active   []T `json:"active"`
	Inactive []T `json:"inactive"`
}

type CityActivity[T any] struct {
	Active     []T     `json:"active"`
	Inactive   []T     `json:"inactive"`
	TotalSales float64 `json:"total_sales"`
}
