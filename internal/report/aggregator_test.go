package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

func dailyMetric(date time.Time, revenue string, score float64, outlier bool) contracts.DailyMetric {
	return contracts.DailyMetric{
		Date:         date,
		Transactions: 10,
		Revenue:      decimal.RequireFromString(revenue),
		ReturnAmount: decimal.Zero,
		QualityScore: score,
		IsOutlier:    outlier,
		OutlierType:  "Normal",
	}
}

func TestAggregator_SectionOrder(t *testing.T) {
	a := NewAggregator(logger.NewNop())

	result := &contracts.QualityResult{
		GeneratedAt: time.Date(2011, 1, 5, 10, 0, 0, 0, time.UTC),
		Daily: []contracts.DailyMetric{
			dailyMetric(time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC), "100.00", 1.0, false),
		},
		OverallScore: 0.97,
		Passed:       true,
	}

	report := a.Aggregate(result)

	require.Len(t, report.Sections, len(contracts.SectionOrder))
	for i, name := range contracts.SectionOrder {
		assert.Equal(t, name, report.Sections[i].Name)
	}

	assert.Equal(t, 0.97, report.OverallScore)
	assert.True(t, report.Passed)
	assert.Equal(t, result.GeneratedAt, report.GeneratedAt)
	assert.Equal(t, time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC), report.RunDate)
}

func TestAggregator_EmptyResultStillSevenSections(t *testing.T) {
	a := NewAggregator(logger.NewNop())

	result := &contracts.QualityResult{
		GeneratedAt:  time.Date(2011, 1, 5, 10, 30, 0, 0, time.UTC),
		OverallScore: 1.0,
		Passed:       true,
	}

	report := a.Aggregate(result)

	require.Len(t, report.Sections, len(contracts.SectionOrder))
	for _, s := range report.Sections[:4] {
		assert.Empty(t, s.Rows, "section %s", s.Name)
		assert.NotEmpty(t, s.Columns, "section %s", s.Name)
	}

	// The overall section is emitted on every run, data or not.
	overall, ok := report.Section(contracts.SectionOverall)
	require.True(t, ok)
	assert.Len(t, overall.Rows, 1)
}

func TestAggregator_DailyRows(t *testing.T) {
	a := NewAggregator(logger.NewNop())

	result := &contracts.QualityResult{
		GeneratedAt: time.Now().UTC(),
		Daily: []contracts.DailyMetric{
			{
				Date:         time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC),
				Transactions: 3,
				Revenue:      decimal.RequireFromString("7.5"),
				ReturnAmount: decimal.RequireFromString("10"),
				QualityScore: 1.0,
				OutlierType:  "Normal",
			},
		},
	}

	report := a.Aggregate(result)

	daily, ok := report.Section(contracts.SectionDaily)
	require.True(t, ok)
	require.Len(t, daily.Rows, 1)

	row := daily.Rows[0]
	assert.Equal(t, "2010-12-01", row[0])
	assert.Equal(t, 3, row[1])
	assert.Equal(t, "7.50", row[3])
	assert.Equal(t, "10.00", row[4])
}

func TestMonthlyTrends(t *testing.T) {
	daily := []contracts.DailyMetric{
		dailyMetric(time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC), "100.00", 1.0, false),
		dailyMetric(time.Date(2010, 12, 2, 0, 0, 0, 0, time.UTC), "250.50", 0.85, true),
		dailyMetric(time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC), "80.00", 1.0, false),
	}

	trends := MonthlyTrends(daily)

	require.Len(t, trends, 2)

	dec := trends[0]
	assert.Equal(t, 2010, dec.Year)
	assert.Equal(t, 12, dec.Month)
	assert.Equal(t, "350.50", dec.TotalRevenue)
	assert.InDelta(t, 0.925, dec.AvgScore, 1e-9)
	assert.Equal(t, 1, dec.FlaggedDays)
	assert.Equal(t, 20, dec.Transactions)

	jan := trends[1]
	assert.Equal(t, 2011, jan.Year)
	assert.Equal(t, 1, jan.Month)
	assert.Equal(t, "80.00", jan.TotalRevenue)
	assert.Equal(t, 0, jan.FlaggedDays)
}

func TestMonthlyTrends_Empty(t *testing.T) {
	assert.Empty(t, MonthlyTrends(nil))
}
