package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactSale is one row of fact_sales. TotalAmount is always exactly
// Quantity x UnitPrice; IsReturn is true when the invoice carries the
// return prefix or the quantity is negative. Rows are never mutated
// after creation; re-runs skip on the (invoice_no, product_key, time_key)
// composite key instead of overwriting.
type FactSale struct {
	FactID      int64           `json:"fact_id"`
	InvoiceNo   string          `json:"invoice_no"`
	ProductKey  int64           `json:"product_key"`
	CustomerKey int64           `json:"customer_key"`
	TimeKey     int64           `json:"time_key"`
	CountryKey  int64           `json:"country_key"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IsReturn    bool            `json:"is_return"`

	// Date is the invoice calendar date, carried for metric computation.
	// It is not a fact_sales column; persistence resolves it via dim_time.
	Date time.Time `json:"date"`
}

// AmountConsistent reports whether the stored total matches the
// quantity x unit price computation exactly.
func (f *FactSale) AmountConsistent() bool {
	return f.TotalAmount.Equal(f.UnitPrice.Mul(decimal.NewFromInt(int64(f.Quantity))))
}

// BuildCounts summarizes one fact-building pass.
type BuildCounts struct {
	Inserted         int `json:"inserted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Rejected         int `json:"rejected_unresolvable"`
	Flagged          int `json:"flagged_suspicious"`
}
