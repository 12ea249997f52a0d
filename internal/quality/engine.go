package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/logger"
)

// Engine computes the per-run quality assessment: five metric groups,
// anomaly detection and the overall score. A pure computation pass over
// staging and fact data; it performs no I/O and never faults on empty
// input - every group degrades to a vacuous pass (score 1.0).
type Engine struct {
	config config.QualityConfig
	logger *logger.Logger
}

// Input is everything the engine reads: the run's staging view, the
// normalizer's drop histograms, the built facts and the row counters.
type Input struct {
	Staging []contracts.StagingRecord
	Facts   []contracts.FactSale
	Counts  contracts.RunCounts
	Elapsed time.Duration
}

// NewEngine creates a new quality Engine.
func NewEngine(cfg config.QualityConfig, log *logger.Logger) *Engine {
	return &Engine{
		config: cfg,
		logger: log.WithField("stage", contracts.StageQuality.String()),
	}
}

// Run computes all metric groups and aggregates the overall score: the
// unweighted mean of the five group scores, each scored against the
// configured DQ threshold.
func (e *Engine) Run(input Input) contracts.QualityResult {
	result := contracts.QualityResult{
		GeneratedAt: time.Now().UTC(),
	}

	days := groupByDay(input.Facts)

	result.Daily = e.dailyMetrics(days)
	result.Customer = e.customerMetrics(input.Staging, input.Counts.Normalize)
	result.ReturnRate = e.returnRateMetrics(days)
	result.Products = e.productMetrics(input.Staging)
	result.Rule = businessRuleCheck(input.Facts)
	result.Summary = e.summarize(input)

	result.Groups = []contracts.GroupScore{
		e.score(contracts.GroupDaily, dailyScore(result.Daily)),
		e.score(contracts.GroupCustomer, customerScore(input.Counts.Normalize)),
		e.score(contracts.GroupReturnRate, returnRateScore(result.ReturnRate)),
		e.score(contracts.GroupProduct, productScore(result.Products)),
		e.score(contracts.GroupBusinessRule, ruleScore(result.Rule)),
	}

	total := 0.0
	for _, g := range result.Groups {
		total += g.Score
	}
	result.OverallScore = total / float64(len(result.Groups))
	result.Passed = result.OverallScore >= e.config.DQThreshold

	result.Anomalies = e.detectAnomalies(result.Daily, result.ReturnRate, input.Facts)

	e.logger.WithFields(map[string]interface{}{
		"overall_score": result.OverallScore,
		"passed":        result.Passed,
		"anomalies":     len(result.Anomalies),
	}).Info("Quality assessment completed")

	return result
}

// score wraps a raw group score with the configured pass threshold.
func (e *Engine) score(group string, value float64) contracts.GroupScore {
	return contracts.GroupScore{
		Group:     group,
		Score:     value,
		Threshold: e.config.DQThreshold,
		Passed:    value >= e.config.DQThreshold,
	}
}

// day is one calendar date's slice of the fact view.
type day struct {
	date  time.Time
	facts []contracts.FactSale
}

// groupByDay buckets facts by calendar date, ascending.
func groupByDay(facts []contracts.FactSale) []day {
	buckets := make(map[time.Time][]contracts.FactSale)
	for i := range facts {
		buckets[facts[i].Date] = append(buckets[facts[i].Date], facts[i])
	}

	days := make([]day, 0, len(buckets))
	for date, dayFacts := range buckets {
		days = append(days, day{date: date, facts: dayFacts})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

	return days
}

// dailyMetrics computes per-date transaction statistics and flags revenue
// outliers beyond the configured sigma multiplier of the run's day series.
func (e *Engine) dailyMetrics(days []day) []contracts.DailyMetric {
	metrics := make([]contracts.DailyMetric, 0, len(days))
	revenues := make([]float64, 0, len(days))

	for _, d := range days {
		m := contracts.DailyMetric{
			Date:         d.date,
			Transactions: len(d.facts),
			Revenue:      decimal.Zero,
			ReturnAmount: decimal.Zero,
		}

		customers := make(map[int64]struct{})
		sales := 0
		for i := range d.facts {
			f := &d.facts[i]
			customers[f.CustomerKey] = struct{}{}
			if f.IsReturn {
				m.ReturnAmount = m.ReturnAmount.Add(f.TotalAmount.Abs())
				continue
			}
			m.Revenue = m.Revenue.Add(f.TotalAmount)
			sales++
		}
		m.UniqueCustomers = len(customers)
		if sales > 0 {
			m.MeanValue = m.Revenue.InexactFloat64() / float64(sales)
		}

		revenues = append(revenues, m.Revenue.InexactFloat64())
		metrics = append(metrics, m)
	}

	mean, stddev := meanStd(revenues)
	for i := range metrics {
		if stddev > 0 {
			metrics[i].ZScore = (revenues[i] - mean) / stddev
		}
		metrics[i].OutlierType = "Normal"
		metrics[i].QualityScore = 1.0
		if abs(metrics[i].ZScore) > e.config.OutlierSigma {
			metrics[i].IsOutlier = true
			metrics[i].QualityScore = 0.85
			if metrics[i].ZScore < 0 {
				metrics[i].OutlierType = "Low"
			} else {
				metrics[i].OutlierType = "High"
			}
		}
	}

	return metrics
}

// customerMetrics reports per-date customer-id completeness. The missing
// counts come from the normalizer: rows dropped for a null customer never
// reach staging, so the drop histogram is the only record of them.
func (e *Engine) customerMetrics(staging []contracts.StagingRecord, stats contracts.NormalizeStats) []contracts.CustomerDayMetric {
	staged := make(map[string]int)
	for i := range staging {
		staged[staging[i].Date().Format(contracts.TimeNaturalKey)]++
	}

	dates := make(map[string]struct{}, len(staged))
	for d := range staged {
		dates[d] = struct{}{}
	}
	for d := range stats.MissingCustomerByDate {
		dates[d] = struct{}{}
	}

	ordered := make([]string, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Strings(ordered)

	warnBand := 2 * (1 - e.config.DQThreshold)

	metrics := make([]contracts.CustomerDayMetric, 0, len(ordered))
	for _, d := range ordered {
		date, _ := time.Parse(contracts.TimeNaturalKey, d)
		missing := stats.MissingCustomerByDate[d]
		total := staged[d] + missing

		m := contracts.CustomerDayMetric{
			Date:         date,
			Transactions: total,
			Missing:      missing,
		}
		if total > 0 {
			m.MissingRate = float64(missing) / float64(total)
		}
		switch {
		case m.MissingRate <= 1-e.config.DQThreshold:
			m.Status = "Good"
		case m.MissingRate <= warnBand:
			m.Status = "Warning"
		default:
			m.Status = "Critical"
		}
		metrics = append(metrics, m)
	}

	return metrics
}

// returnRateMetrics computes the per-date return fraction and flags dates
// whose rate deviates beyond the configured band from the run's average.
func (e *Engine) returnRateMetrics(days []day) []contracts.ReturnRateMetric {
	metrics := make([]contracts.ReturnRateMetric, 0, len(days))
	rates := make([]float64, 0, len(days))

	for _, d := range days {
		m := contracts.ReturnRateMetric{
			Date:         d.date,
			Transactions: len(d.facts),
		}
		for i := range d.facts {
			if d.facts[i].IsReturn {
				m.Returns++
			}
		}
		if m.Transactions > 0 {
			m.ReturnRate = float64(m.Returns) / float64(m.Transactions)
		}
		rates = append(rates, m.ReturnRate)
		metrics = append(metrics, m)
	}

	mean, stddev := meanStd(rates)
	for i := range metrics {
		if stddev > 0 {
			metrics[i].ZScore = (rates[i] - mean) / stddev
		}
		metrics[i].IsAnomaly = abs(metrics[i].ZScore) > e.config.ReturnRateBand
	}

	return metrics
}

// productMetrics reports description completeness per distinct stock code.
// First sighting wins for descriptions, matching dimension resolution.
func (e *Engine) productMetrics(staging []contracts.StagingRecord) []contracts.ProductMetric {
	index := make(map[string]int)
	metrics := make([]contracts.ProductMetric, 0)

	for i := range staging {
		rec := &staging[i]
		pos, ok := index[rec.StockCode]
		if !ok {
			pos = len(metrics)
			index[rec.StockCode] = pos
			metrics = append(metrics, contracts.ProductMetric{
				StockCode:   rec.StockCode,
				Description: rec.Description,
				Revenue:     decimal.Zero,
			})
		}
		m := &metrics[pos]
		if m.Description == "" {
			m.Description = rec.Description
		}
		m.Transactions++
		m.Revenue = m.Revenue.Add(rec.UnitPrice.Mul(decimal.NewFromInt(int64(rec.Quantity))))
	}

	for i := range metrics {
		metrics[i].MissingDescription = metrics[i].Description == ""
	}
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].StockCode < metrics[j].StockCode
	})

	return metrics
}

// businessRuleCheck counts fact rows whose stored total does not equal
// quantity x unit price. Under correct computation this is always zero;
// the check is a regression guard, not a data filter.
func businessRuleCheck(facts []contracts.FactSale) contracts.BusinessRuleCheck {
	check := contracts.BusinessRuleCheck{FactsChecked: len(facts)}
	for i := range facts {
		if !facts[i].AmountConsistent() {
			check.Mismatches++
		}
	}
	return check
}

// summarize builds the overall summary. This section is emitted on every
// run, including runs that end in partial failure.
func (e *Engine) summarize(input Input) contracts.OverallSummary {
	s := contracts.OverallSummary{
		RowsIn:            input.Counts.Normalize.RowsIn,
		DuplicatesRemoved: input.Counts.Duplicates,
		FactsInserted:     input.Counts.Facts.Inserted,
		FactsSkipped:      input.Counts.Facts.SkippedDuplicate,
		FactsRejected:     input.Counts.Facts.Rejected,
		TotalRevenue:      decimal.Zero,
		TotalReturns:      decimal.Zero,
		Elapsed:           input.Elapsed,
	}
	for _, n := range input.Counts.Normalize.ParseFailures {
		s.ParseFailures += n
	}
	for _, n := range input.Counts.Normalize.MissingCritical {
		s.MissingCritical += n
	}

	customers := make(map[int64]struct{})
	products := make(map[int64]struct{})
	countries := make(map[int64]struct{})
	dates := make(map[time.Time]struct{})
	returns := 0

	for i := range input.Facts {
		f := &input.Facts[i]
		customers[f.CustomerKey] = struct{}{}
		products[f.ProductKey] = struct{}{}
		countries[f.CountryKey] = struct{}{}
		dates[f.Date] = struct{}{}
		if f.IsReturn {
			s.TotalReturns = s.TotalReturns.Add(f.TotalAmount.Abs())
			returns++
		} else {
			s.TotalRevenue = s.TotalRevenue.Add(f.TotalAmount)
		}
	}

	s.DistinctCustomers = len(customers)
	s.DistinctProducts = len(products)
	s.DistinctCountries = len(countries)
	s.DistinctDates = len(dates)
	if len(input.Facts) > 0 {
		s.ReturnRate = float64(returns) / float64(len(input.Facts))
	}

	return s
}

// detectAnomalies converts flagged metrics and suspicious facts into
// anomaly records for the report.
func (e *Engine) detectAnomalies(daily []contracts.DailyMetric, returnRates []contracts.ReturnRateMetric, facts []contracts.FactSale) []contracts.AnomalyRecord {
	anomalies := make([]contracts.AnomalyRecord, 0)

	for i := range daily {
		if !daily[i].IsOutlier {
			continue
		}
		severity := contracts.SeverityHigh
		if daily[i].OutlierType == "Low" {
			severity = contracts.SeverityMedium
		}
		anomalies = append(anomalies, contracts.AnomalyRecord{
			Category:  contracts.AnomalySalesOutlier,
			Key:       daily[i].Date.Format(contracts.TimeNaturalKey),
			Magnitude: daily[i].ZScore,
			Severity:  severity,
			Description: fmt.Sprintf("%s sales day: revenue %s deviates %.1f sigma from run mean",
				daily[i].OutlierType, daily[i].Revenue.StringFixed(2), abs(daily[i].ZScore)),
		})
	}

	for i := range returnRates {
		if !returnRates[i].IsAnomaly {
			continue
		}
		anomalies = append(anomalies, contracts.AnomalyRecord{
			Category:  contracts.AnomalyReturnRate,
			Key:       returnRates[i].Date.Format(contracts.TimeNaturalKey),
			Magnitude: returnRates[i].ZScore,
			Severity:  contracts.SeverityMedium,
			Description: fmt.Sprintf("unusual return rate: %.1f%% of %d transactions",
				returnRates[i].ReturnRate*100, returnRates[i].Transactions),
		})
	}

	for i := range facts {
		f := &facts[i]
		if !f.UnitPrice.IsPositive() {
			anomalies = append(anomalies, contracts.AnomalyRecord{
				Category:  contracts.AnomalyPriceQuantity,
				Key:       f.InvoiceNo,
				Magnitude: f.UnitPrice.InexactFloat64(),
				Severity:  contracts.SeverityMedium,
				Description: fmt.Sprintf("non-positive unit price %s on invoice %s",
					f.UnitPrice.StringFixed(2), f.InvoiceNo),
			})
		}
		qty := f.Quantity
		if qty < 0 {
			qty = -qty
		}
		if qty > e.config.SuspiciousQuantity {
			anomalies = append(anomalies, contracts.AnomalyRecord{
				Category:  contracts.AnomalyPriceQuantity,
				Key:       f.InvoiceNo,
				Magnitude: float64(f.Quantity),
				Severity:  contracts.SeverityHigh,
				Description: fmt.Sprintf("quantity %d exceeds suspicious threshold %d on invoice %s",
					f.Quantity, e.config.SuspiciousQuantity, f.InvoiceNo),
			})
		}
	}

	return anomalies
}
