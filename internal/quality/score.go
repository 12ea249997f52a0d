package quality

import (
	"math"

	"github.com/wliao/retaildw/internal/contracts"
)

// Group score functions. Every score is a [0,1] fraction and degrades to
// 1.0 (vacuous pass) on empty input.

// dailyScore is the fraction of transactions that fall on non-flagged days.
func dailyScore(daily []contracts.DailyMetric) float64 {
	total, clean := 0, 0
	for i := range daily {
		total += daily[i].Transactions
		if !daily[i].IsOutlier {
			clean += daily[i].Transactions
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(clean) / float64(total)
}

// customerScore is the fraction of raw rows carrying a resolvable customer
// id, measured against the normalizer's input before any drops.
func customerScore(stats contracts.NormalizeStats) float64 {
	if stats.RowsIn == 0 {
		return 1.0
	}
	return float64(stats.RowsIn-stats.UnresolvableCustomers()) / float64(stats.RowsIn)
}

// returnRateScore is the fraction of days whose return rate stays inside
// the configured band.
func returnRateScore(metrics []contracts.ReturnRateMetric) float64 {
	if len(metrics) == 0 {
		return 1.0
	}
	clean := 0
	for i := range metrics {
		if !metrics[i].IsAnomaly {
			clean++
		}
	}
	return float64(clean) / float64(len(metrics))
}

// productScore is the fraction of distinct stock codes with a non-empty
// description.
func productScore(products []contracts.ProductMetric) float64 {
	if len(products) == 0 {
		return 1.0
	}
	described := 0
	for i := range products {
		if !products[i].MissingDescription {
			described++
		}
	}
	return float64(described) / float64(len(products))
}

// ruleScore is the fraction of fact rows passing the total-amount check.
func ruleScore(check contracts.BusinessRuleCheck) float64 {
	if check.FactsChecked == 0 {
		return 1.0
	}
	return float64(check.FactsChecked-check.Mismatches) / float64(check.FactsChecked)
}

// meanStd returns the mean and population standard deviation of a series.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
