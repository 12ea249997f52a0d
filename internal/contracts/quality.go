package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades a failed check or anomaly.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Metric group identifiers. The overall run score is the unweighted mean
// of these five group scores.
const (
	GroupDaily        = "daily"
	GroupCustomer     = "customer"
	GroupReturnRate   = "return_rate"
	GroupProduct      = "product"
	GroupBusinessRule = "business_rule"
)

// AnomalyCategory classifies an AnomalyRecord.
type AnomalyCategory string

const (
	AnomalySalesOutlier  AnomalyCategory = "sales_outlier"
	AnomalyReturnRate    AnomalyCategory = "return_rate_outlier"
	AnomalyPriceQuantity AnomalyCategory = "price_quantity_violation"
)

// AnomalyRecord is one detected anomaly. Records flow only into the
// report; they are not stored relationally.
type AnomalyRecord struct {
	Category    AnomalyCategory `json:"category"`
	Key         string          `json:"key"` // natural key: date, stock code or invoice
	Magnitude   float64         `json:"magnitude"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
}

// GroupScore is the pass/fail outcome of one metric group.
type GroupScore struct {
	Group     string  `json:"group"`
	Score     float64 `json:"score"` // 0.0 .. 1.0
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// DailyMetric holds per-date transaction statistics and outlier status.
type DailyMetric struct {
	Date            time.Time       `json:"date"`
	Transactions    int             `json:"transactions"`
	UniqueCustomers int             `json:"unique_customers"`
	Revenue         decimal.Decimal `json:"revenue"`       // sales, returns excluded
	ReturnAmount    decimal.Decimal `json:"return_amount"` // absolute value of returns
	MeanValue       float64         `json:"mean_value"`    // mean transaction value
	ZScore          float64         `json:"z_score"`
	IsOutlier       bool            `json:"is_outlier"`
	OutlierType     string          `json:"outlier_type"` // Low / High / Normal
	QualityScore    float64         `json:"quality_score"`
}

// CustomerDayMetric reports customer-id completeness for one date.
type CustomerDayMetric struct {
	Date         time.Time `json:"date"`
	Transactions int       `json:"transactions"` // rows seen for the date, drops included
	Missing      int       `json:"missing"`
	MissingRate  float64   `json:"missing_rate"`
	Status       string    `json:"status"` // Good / Warning / Critical
}

// ReturnRateMetric reports the per-date return fraction and its deviation
// from the run's average.
type ReturnRateMetric struct {
	Date         time.Time `json:"date"`
	Transactions int       `json:"transactions"`
	Returns      int       `json:"returns"`
	ReturnRate   float64   `json:"return_rate"`
	ZScore       float64   `json:"z_score"`
	IsAnomaly    bool      `json:"is_anomaly"`
}

// ProductMetric reports completeness for one distinct stock code.
type ProductMetric struct {
	StockCode          string          `json:"stock_code"`
	Description        string          `json:"description"`
	Transactions       int             `json:"transactions"`
	Revenue            decimal.Decimal `json:"revenue"`
	MissingDescription bool            `json:"missing_description"`
}

// BusinessRuleCheck is the total-amount regression guard: under correct
// computation the mismatch count must be zero.
type BusinessRuleCheck struct {
	FactsChecked int `json:"facts_checked"`
	Mismatches   int `json:"mismatches"`
}

// OverallSummary aggregates run-level counts. It is emitted even when a
// run ends in partial failure, reporting counts at the point of failure.
type OverallSummary struct {
	RowsIn            int             `json:"rows_in"`
	ParseFailures     int             `json:"parse_failures"`
	MissingCritical   int             `json:"missing_critical"`
	DuplicatesRemoved int             `json:"duplicates_removed"`
	FactsInserted     int             `json:"facts_inserted"`
	FactsSkipped      int             `json:"facts_skipped"`
	FactsRejected     int             `json:"facts_rejected"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalReturns      decimal.Decimal `json:"total_returns"`
	ReturnRate        float64         `json:"return_rate"`
	DistinctCustomers int             `json:"distinct_customers"`
	DistinctProducts  int             `json:"distinct_products"`
	DistinctCountries int             `json:"distinct_countries"`
	DistinctDates     int             `json:"distinct_dates"`
	Elapsed           time.Duration   `json:"elapsed"`
}

// QualityResult is the full output of one quality engine pass.
// Created fresh each run and never mutated afterwards.
type QualityResult struct {
	GeneratedAt time.Time `json:"generated_at"`

	Daily      []DailyMetric       `json:"daily"`
	Customer   []CustomerDayMetric `json:"customer"`
	ReturnRate []ReturnRateMetric  `json:"return_rate"`
	Products   []ProductMetric     `json:"products"`
	Rule       BusinessRuleCheck   `json:"business_rule"`
	Summary    OverallSummary      `json:"summary"`

	Groups    []GroupScore    `json:"groups"`
	Anomalies []AnomalyRecord `json:"anomalies"`

	OverallScore float64 `json:"overall_score"`
	Passed       bool    `json:"passed"`
}

// Group returns the score entry for the named group, if present.
func (q *QualityResult) Group(name string) (GroupScore, bool) {
	for _, g := range q.Groups {
		if g.Group == name {
			return g, true
		}
	}
	return GroupScore{}, false
}
