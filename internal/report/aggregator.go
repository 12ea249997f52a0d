package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

// maxProductRows caps the product section; the full product dimension can
// be large and the section is meant for review, not as an extract.
const maxProductRows = 1000

// Aggregator assembles the quality engine's output into the multi-section
// run report. It only reshapes: no metric is ever recomputed here.
type Aggregator struct {
	logger *logger.Logger
}

// NewAggregator creates a new report Aggregator.
func NewAggregator(log *logger.Logger) *Aggregator {
	return &Aggregator{logger: log.WithField("stage", contracts.StageReport.String())}
}

// Aggregate builds the report with its seven sections in deterministic
// order: Daily, Customer, Return-rate, Product, Overall, Anomalies,
// Monthly trends.
func (a *Aggregator) Aggregate(result *contracts.QualityResult) *contracts.Report {
	report := &contracts.Report{
		RunDate:      runDate(result),
		GeneratedAt:  result.GeneratedAt,
		OverallScore: result.OverallScore,
		Passed:       result.Passed,
		Sections: []contracts.Section{
			dailySection(result.Daily),
			customerSection(result.Customer),
			returnRateSection(result.ReturnRate),
			productSection(result.Products),
			overallSection(result),
			anomalySection(result.Anomalies),
			monthlySection(MonthlyTrends(result.Daily)),
		},
	}

	a.logger.WithFields(map[string]interface{}{
		"sections":      len(report.Sections),
		"overall_score": report.OverallScore,
	}).Info("Quality report assembled")

	return report
}

// runDate is the newest date covered by the run, falling back to the
// generation time for empty batches.
func runDate(result *contracts.QualityResult) time.Time {
	if len(result.Daily) == 0 {
		return result.GeneratedAt.Truncate(24 * time.Hour)
	}
	return result.Daily[len(result.Daily)-1].Date
}

func dailySection(daily []contracts.DailyMetric) contracts.Section {
	s := contracts.Section{
		Name: contracts.SectionDaily,
		Columns: []string{
			"date", "transactions", "unique_customers", "revenue",
			"return_amount", "mean_value", "z_score", "is_outlier",
			"outlier_type", "quality_score",
		},
	}
	for i := range daily {
		m := &daily[i]
		s.Rows = append(s.Rows, []any{
			m.Date.Format(contracts.TimeNaturalKey), m.Transactions,
			m.UniqueCustomers, m.Revenue.StringFixed(2),
			m.ReturnAmount.StringFixed(2), m.MeanValue, m.ZScore,
			m.IsOutlier, m.OutlierType, m.QualityScore,
		})
	}
	return s
}

func customerSection(customer []contracts.CustomerDayMetric) contracts.Section {
	s := contracts.Section{
		Name:    contracts.SectionCustomer,
		Columns: []string{"date", "transactions", "missing_customers", "missing_rate", "status"},
	}
	for i := range customer {
		m := &customer[i]
		s.Rows = append(s.Rows, []any{
			m.Date.Format(contracts.TimeNaturalKey), m.Transactions,
			m.Missing, m.MissingRate, m.Status,
		})
	}
	return s
}

func returnRateSection(rates []contracts.ReturnRateMetric) contracts.Section {
	s := contracts.Section{
		Name:    contracts.SectionReturnRate,
		Columns: []string{"date", "transactions", "returns", "return_rate", "z_score", "is_anomaly"},
	}
	for i := range rates {
		m := &rates[i]
		s.Rows = append(s.Rows, []any{
			m.Date.Format(contracts.TimeNaturalKey), m.Transactions,
			m.Returns, m.ReturnRate, m.ZScore, m.IsAnomaly,
		})
	}
	return s
}

func productSection(products []contracts.ProductMetric) contracts.Section {
	s := contracts.Section{
		Name:    contracts.SectionProduct,
		Columns: []string{"stock_code", "description", "transactions", "revenue", "missing_description"},
	}
	for i := range products {
		if i == maxProductRows {
			break
		}
		m := &products[i]
		s.Rows = append(s.Rows, []any{
			m.StockCode, m.Description, m.Transactions,
			m.Revenue.StringFixed(2), m.MissingDescription,
		})
	}
	return s
}

func overallSection(result *contracts.QualityResult) contracts.Section {
	sum := &result.Summary
	s := contracts.Section{
		Name: contracts.SectionOverall,
		Columns: []string{
			"rows_in", "parse_failures", "missing_critical",
			"duplicates_removed", "facts_inserted", "facts_skipped",
			"facts_rejected", "total_revenue", "total_returns",
			"return_rate", "distinct_customers", "distinct_products",
			"distinct_countries", "distinct_dates", "elapsed_seconds",
			"overall_score", "passed",
		},
		Rows: [][]any{{
			sum.RowsIn, sum.ParseFailures, sum.MissingCritical,
			sum.DuplicatesRemoved, sum.FactsInserted, sum.FactsSkipped,
			sum.FactsRejected, sum.TotalRevenue.StringFixed(2),
			sum.TotalReturns.StringFixed(2), sum.ReturnRate,
			sum.DistinctCustomers, sum.DistinctProducts,
			sum.DistinctCountries, sum.DistinctDates,
			sum.Elapsed.Seconds(), result.OverallScore, result.Passed,
		}},
	}
	return s
}

func anomalySection(anomalies []contracts.AnomalyRecord) contracts.Section {
	s := contracts.Section{
		Name:    contracts.SectionAnomalies,
		Columns: []string{"category", "key", "magnitude", "severity", "description"},
	}
	for i := range anomalies {
		m := &anomalies[i]
		s.Rows = append(s.Rows, []any{
			string(m.Category), m.Key, m.Magnitude, string(m.Severity), m.Description,
		})
	}
	return s
}

func monthlySection(trends []contracts.MonthlyTrend) contracts.Section {
	s := contracts.Section{
		Name:    contracts.SectionMonthlyTrends,
		Columns: []string{"year", "month", "total_revenue", "avg_score", "flagged_days", "transactions"},
	}
	for i := range trends {
		m := &trends[i]
		s.Rows = append(s.Rows, []any{
			m.Year, m.Month, m.TotalRevenue, m.AvgScore, m.FlaggedDays, m.Transactions,
		})
	}
	return s
}

// MonthlyTrends re-aggregates daily metrics by calendar month: revenue
// summed, quality score averaged, outlier days counted.
func MonthlyTrends(daily []contracts.DailyMetric) []contracts.MonthlyTrend {
	type bucket struct {
		revenue      decimal.Decimal
		scoreSum     float64
		days         int
		flagged      int
		transactions int
	}

	type ym struct{ year, month int }
	buckets := make(map[ym]*bucket)

	for i := range daily {
		m := &daily[i]
		key := ym{year: m.Date.Year(), month: int(m.Date.Month())}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[key] = b
		}
		b.revenue = b.revenue.Add(m.Revenue)
		b.scoreSum += m.QualityScore
		b.days++
		b.transactions += m.Transactions
		if m.IsOutlier {
			b.flagged++
		}
	}

	keys := make([]ym, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	trends := make([]contracts.MonthlyTrend, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		trends = append(trends, contracts.MonthlyTrend{
			Year:         key.year,
			Month:        key.month,
			TotalRevenue: b.revenue.StringFixed(2),
			AvgScore:     b.scoreSum / float64(b.days),
			FlaggedDays:  b.flagged,
			Transactions: b.transactions,
		})
	}

	return trends
}
