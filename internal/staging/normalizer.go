package staging

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

// Rejection reasons recorded in the parse-failure histogram.
const (
	ReasonBadQuantity   = "quantity"
	ReasonBadPrice      = "price"
	ReasonBadDate       = "invoice_date"
	ReasonBadCustomerID = "customer_id"
)

// Critical fields whose absence drops a row. These carry the dimension
// natural keys, so a row without them can never be resolved.
const (
	FieldCustomerID  = "customer_id"
	FieldStockCode   = "stock_code"
	FieldInvoiceDate = "invoice_date"
)

// invoiceDateLayouts are accepted timestamp formats, most specific first.
var invoiceDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
}

// Normalizer cleans and types raw staging rows. It is a pure
// transformation: no side effects beyond the returned counters.
type Normalizer struct {
	logger *logger.Logger
}

// NewNormalizer creates a new Normalizer instance.
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log.WithField("stage", contracts.StageNormalize.String())}
}

// Normalize coerces raw rows into typed staging records. A row whose
// quantity, price, invoice date or customer id cannot be parsed is dropped
// and counted as a parse failure; a row missing a critical field is dropped
// and counted per field. Neither case is an error.
func (n *Normalizer) Normalize(rows []contracts.RawRow) ([]contracts.StagingRecord, contracts.NormalizeStats) {
	stats := contracts.NormalizeStats{
		RowsIn:                len(rows),
		ParseFailures:         make(map[string]int),
		MissingCritical:       make(map[string]int),
		MissingCustomerByDate: make(map[string]int),
	}

	records := make([]contracts.StagingRecord, 0, len(rows))
	for i := range rows {
		record, ok := n.normalizeRow(&rows[i], &stats)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	stats.RowsOut = len(records)

	n.logger.WithFields(map[string]interface{}{
		"rows_in":  stats.RowsIn,
		"rows_out": stats.RowsOut,
		"dropped":  stats.Dropped(),
	}).Info("Staging normalization completed")

	return records, stats
}

// normalizeRow validates and coerces one raw row.
func (n *Normalizer) normalizeRow(row *contracts.RawRow, stats *contracts.NormalizeStats) (contracts.StagingRecord, bool) {
	invoice := strings.TrimSpace(row.Invoice)
	stockCode := strings.TrimSpace(row.StockCode)
	customerRaw := strings.TrimSpace(row.CustomerID)
	dateRaw := strings.TrimSpace(row.InvoiceDate)

	// Critical-field presence. A row may miss several; each is counted,
	// the row is dropped once.
	missing := false
	if customerRaw == "" {
		stats.MissingCritical[FieldCustomerID]++
		n.recordMissingCustomerDate(dateRaw, stats)
		missing = true
	}
	if stockCode == "" {
		stats.MissingCritical[FieldStockCode]++
		missing = true
	}
	if dateRaw == "" {
		stats.MissingCritical[FieldInvoiceDate]++
		missing = true
	}
	if missing {
		return contracts.StagingRecord{}, false
	}

	quantity, err := ParseQuantity(row.Quantity)
	if err != nil {
		stats.ParseFailures[ReasonBadQuantity]++
		return contracts.StagingRecord{}, false
	}

	price, err := ParsePrice(row.Price)
	if err != nil {
		stats.ParseFailures[ReasonBadPrice]++
		return contracts.StagingRecord{}, false
	}

	invoiceDate, err := ParseInvoiceDate(dateRaw)
	if err != nil {
		stats.ParseFailures[ReasonBadDate]++
		return contracts.StagingRecord{}, false
	}

	customerID, err := ParseCustomerID(customerRaw)
	if err != nil {
		stats.ParseFailures[ReasonBadCustomerID]++
		return contracts.StagingRecord{}, false
	}

	return contracts.StagingRecord{
		InvoiceNo:   invoice,
		StockCode:   stockCode,
		Description: strings.TrimSpace(row.Description),
		Quantity:    quantity,
		InvoiceDate: invoiceDate,
		UnitPrice:   price,
		CustomerID:  customerID,
		Country:     strings.TrimSpace(row.Country),
	}, true
}

// recordMissingCustomerDate attributes a null-customer drop to its calendar
// date when the date itself still parses.
func (n *Normalizer) recordMissingCustomerDate(dateRaw string, stats *contracts.NormalizeStats) {
	if dateRaw == "" {
		return
	}
	if ts, err := ParseInvoiceDate(dateRaw); err == nil {
		stats.MissingCustomerByDate[ts.Format(contracts.TimeNaturalKey)]++
	}
}

// ParseQuantity parses a raw quantity. Negative values are valid (returns).
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	quantity, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", raw, err)
	}

	return quantity, nil
}

// ParsePrice parses a raw unit price as an exact decimal. Non-positive
// prices parse fine; they are anomaly candidates downstream, not rejects.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty price")
	}

	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", raw, err)
	}

	return price, nil
}

// ParseInvoiceDate parses a raw invoice timestamp, trying the accepted
// layouts in order.
func ParseInvoiceDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty invoice date")
	}

	for _, layout := range invoiceDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("parse invoice date %q: unrecognized format", raw)
}

// ParseCustomerID parses a raw customer id. Source extracts often deliver
// ids as floats ("17850.0"), so a trailing fraction of zero is accepted.
func ParseCustomerID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty customer id")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse customer id %q: %w", raw, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("parse customer id %q: not an integer", raw)
	}

	return d.IntPart(), nil
}
