package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one row as delivered by the external tabular reader.
// All fields arrive as strings; the staging normalizer owns type coercion.
type RawRow struct {
	Invoice     string `json:"invoice"`
	StockCode   string `json:"stock_code"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	InvoiceDate string `json:"invoice_date"`
	Price       string `json:"price"`
	CustomerID  string `json:"customer_id"`
	Country     string `json:"country"`
}

// StagingRecord is a typed, validated staging row. Critical fields
// (customer id, stock code, invoice date) are guaranteed non-empty;
// rows failing that contract never leave the normalizer.
type StagingRecord struct {
	InvoiceNo   string          `json:"invoice_no"`
	StockCode   string          `json:"stock_code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	InvoiceDate time.Time       `json:"invoice_date"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CustomerID  int64           `json:"customer_id"`
	Country     string          `json:"country"`
}

// Date returns the calendar date of the invoice (midnight UTC).
func (r *StagingRecord) Date() time.Time {
	y, m, d := r.InvoiceDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DedupKey identifies a staging row for duplicate detection:
// two rows sharing (invoice, stock code, timestamp) are the same line.
func (r *StagingRecord) DedupKey() string {
	return r.InvoiceNo + "|" + r.StockCode + "|" + r.InvoiceDate.Format(time.RFC3339)
}

// NormalizeStats counts what the normalizer dropped and why.
// The histograms feed the quality engine's completeness metrics.
type NormalizeStats struct {
	RowsIn          int            `json:"rows_in"`
	RowsOut         int            `json:"rows_out"`
	ParseFailures   map[string]int `json:"parse_failures"`   // reason -> count
	MissingCritical map[string]int `json:"missing_critical"` // field -> count

	// MissingCustomerByDate counts null-customer drops per calendar date
	// (YYYY-MM-DD), for rows whose invoice date still parsed. Feeds the
	// per-day customer completeness table.
	MissingCustomerByDate map[string]int `json:"missing_customer_by_date"`
}

// Dropped returns the total number of rows rejected by the normalizer.
func (s *NormalizeStats) Dropped() int {
	return s.RowsIn - s.RowsOut
}

// MissingCustomers returns the count of rows dropped for a null customer id.
func (s *NormalizeStats) MissingCustomers() int {
	return s.MissingCritical["customer_id"]
}

// UnresolvableCustomers counts rows whose customer id was null or failed
// to parse; either way the row has no resolvable customer.
func (s *NormalizeStats) UnresolvableCustomers() int {
	return s.MissingCritical["customer_id"] + s.ParseFailures["customer_id"]
}
