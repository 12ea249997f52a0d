package quality

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/logger"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultQuality(), logger.NewNop())
}

func fact(invoice string, date time.Time, qty int, price string, isReturn bool) contracts.FactSale {
	unitPrice := decimal.RequireFromString(price)
	return contracts.FactSale{
		InvoiceNo:   invoice,
		ProductKey:  1,
		CustomerKey: 1,
		TimeKey:     1,
		CountryKey:  1,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		TotalAmount: unitPrice.Mul(decimal.NewFromInt(int64(qty))),
		IsReturn:    isReturn,
		Date:        date,
	}
}

func stagedRecord(stockCode, description string, date time.Time) contracts.StagingRecord {
	return contracts.StagingRecord{
		InvoiceNo:   "536365",
		StockCode:   stockCode,
		Description: description,
		Quantity:    1,
		InvoiceDate: date,
		UnitPrice:   decimal.RequireFromString("1.00"),
		CustomerID:  17850,
		Country:     "United Kingdom",
	}
}

func emptyStats(rowsIn int) contracts.NormalizeStats {
	return contracts.NormalizeStats{
		RowsIn:                rowsIn,
		RowsOut:               rowsIn,
		ParseFailures:         map[string]int{},
		MissingCritical:       map[string]int{},
		MissingCustomerByDate: map[string]int{},
	}
}

func TestEngine_EmptyBatchVacuousPass(t *testing.T) {
	e := newTestEngine()

	result := e.Run(Input{Counts: contracts.RunCounts{Normalize: emptyStats(0)}})

	require.Len(t, result.Groups, 5)
	for _, g := range result.Groups {
		assert.Equal(t, 1.0, g.Score, "group %s", g.Group)
		assert.True(t, g.Passed, "group %s", g.Group)
	}
	assert.Equal(t, 1.0, result.OverallScore)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Anomalies)
}

func TestEngine_CustomerCompletenessBelowThreshold(t *testing.T) {
	e := newTestEngine()

	// 100 rows in, 10 without a customer id: completeness 0.90 against a
	// 0.95 threshold fails the customer group.
	stats := emptyStats(100)
	stats.RowsOut = 90
	stats.MissingCritical["customer_id"] = 10
	stats.MissingCustomerByDate["2010-12-01"] = 10

	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)
	staging := make([]contracts.StagingRecord, 0, 90)
	facts := make([]contracts.FactSale, 0, 90)
	for i := 0; i < 90; i++ {
		staging = append(staging, stagedRecord("85123A", "HEART HOLDER", date))
		facts = append(facts, fact("536365", date, 1, "1.00", false))
	}

	result := e.Run(Input{
		Staging: staging,
		Facts:   facts,
		Counts:  contracts.RunCounts{Normalize: stats},
	})

	customer, ok := result.Group(contracts.GroupCustomer)
	require.True(t, ok)
	assert.InDelta(t, 0.90, customer.Score, 1e-9)
	assert.False(t, customer.Passed)

	// The other four groups are clean, so the unweighted mean is 0.98.
	assert.InDelta(t, 0.98, result.OverallScore, 1e-9)
	assert.True(t, result.Passed)
}

func TestEngine_CustomerDayStatusTiers(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		staged  int
		missing int
		status  string
	}{
		{name: "good", staged: 96, missing: 4, status: "Good"},        // 4%
		{name: "warning", staged: 92, missing: 8, status: "Warning"},  // 8%
		{name: "critical", staged: 80, missing: 20, status: "Critical"}, // 20%
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := emptyStats(tt.staged + tt.missing)
			stats.RowsOut = tt.staged
			stats.MissingCustomerByDate["2010-12-01"] = tt.missing

			staging := make([]contracts.StagingRecord, 0, tt.staged)
			for i := 0; i < tt.staged; i++ {
				staging = append(staging, stagedRecord("85123A", "X", date))
			}

			result := e.Run(Input{
				Staging: staging,
				Counts:  contracts.RunCounts{Normalize: stats},
			})

			require.Len(t, result.Customer, 1)
			m := result.Customer[0]
			assert.Equal(t, tt.staged+tt.missing, m.Transactions)
			assert.Equal(t, tt.missing, m.Missing)
			assert.Equal(t, tt.status, m.Status)
		})
	}
}

func TestEngine_DailyRevenueOutlier(t *testing.T) {
	e := newTestEngine()

	// Many ordinary days plus one enormous day: the spike's z-score
	// exceeds 3 sigma and the day is flagged High at score 0.85.
	var facts []contracts.FactSale
	for d := 1; d <= 20; d++ {
		date := time.Date(2010, 12, d, 0, 0, 0, 0, time.UTC)
		facts = append(facts, fact("536365", date, 1, "100.00", false))
	}
	spikeDate := time.Date(2010, 12, 21, 0, 0, 0, 0, time.UTC)
	facts = append(facts, fact("536999", spikeDate, 1, "10000.00", false))

	result := e.Run(Input{
		Facts:  facts,
		Counts: contracts.RunCounts{Normalize: emptyStats(len(facts))},
	})

	require.Len(t, result.Daily, 21)

	spike := result.Daily[20]
	assert.True(t, spike.IsOutlier)
	assert.Equal(t, "High", spike.OutlierType)
	assert.Equal(t, 0.85, spike.QualityScore)
	assert.Greater(t, spike.ZScore, 3.0)

	for _, m := range result.Daily[:20] {
		assert.False(t, m.IsOutlier)
		assert.Equal(t, 1.0, m.QualityScore)
	}

	// One flagged transaction out of 21.
	daily, ok := result.Group(contracts.GroupDaily)
	require.True(t, ok)
	assert.InDelta(t, 20.0/21.0, daily.Score, 1e-9)

	// The spike surfaces as a sales-outlier anomaly.
	var found bool
	for _, a := range result.Anomalies {
		if a.Category == contracts.AnomalySalesOutlier && a.Key == "2010-12-21" {
			found = true
			assert.Equal(t, contracts.SeverityHigh, a.Severity)
		}
	}
	assert.True(t, found)
}

func TestEngine_ReturnRateMetrics(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	facts := []contracts.FactSale{
		fact("536365", date, 1, "2.00", false),
		fact("536366", date, 1, "2.00", false),
		fact("536367", date, 1, "2.00", false),
		fact("C536368", date, -1, "2.00", true),
	}

	result := e.Run(Input{
		Facts:  facts,
		Counts: contracts.RunCounts{Normalize: emptyStats(4)},
	})

	require.Len(t, result.ReturnRate, 1)
	m := result.ReturnRate[0]
	assert.Equal(t, 4, m.Transactions)
	assert.Equal(t, 1, m.Returns)
	assert.InDelta(t, 0.25, m.ReturnRate, 1e-9)
	// A single day cannot deviate from its own mean.
	assert.False(t, m.IsAnomaly)

	// Revenue excludes returns; the return amount is reported absolute.
	require.Len(t, result.Daily, 1)
	assert.Equal(t, "6.00", result.Daily[0].Revenue.StringFixed(2))
	assert.Equal(t, "2.00", result.Daily[0].ReturnAmount.StringFixed(2))
}

func TestEngine_ProductCompleteness(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	staging := []contracts.StagingRecord{
		stagedRecord("85123A", "HEART HOLDER", date),
		stagedRecord("85123A", "", date), // later sighting, already described
		stagedRecord("71053", "", date),
		stagedRecord("22423", "", date),
		stagedRecord("22423", "CAKE STAND", date), // described on a later sighting
	}

	result := e.Run(Input{
		Staging: staging,
		Counts:  contracts.RunCounts{Normalize: emptyStats(5)},
	})

	require.Len(t, result.Products, 3)
	// Sorted by stock code: 22423, 71053, 85123A.
	assert.Equal(t, "22423", result.Products[0].StockCode)
	assert.Equal(t, "CAKE STAND", result.Products[0].Description)
	assert.False(t, result.Products[0].MissingDescription)
	assert.Equal(t, "71053", result.Products[1].StockCode)
	assert.True(t, result.Products[1].MissingDescription)
	assert.Equal(t, "85123A", result.Products[2].StockCode)
	assert.Equal(t, "HEART HOLDER", result.Products[2].Description)

	product, ok := result.Group(contracts.GroupProduct)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, product.Score, 1e-9)
	assert.False(t, product.Passed)
}

func TestEngine_BusinessRuleMismatch(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	good := fact("536365", date, 3, "2.50", false)
	bad := fact("536366", date, 2, "4.00", false)
	bad.TotalAmount = decimal.RequireFromString("7.99") // corrupted total

	result := e.Run(Input{
		Facts:  []contracts.FactSale{good, bad},
		Counts: contracts.RunCounts{Normalize: emptyStats(2)},
	})

	assert.Equal(t, 2, result.Rule.FactsChecked)
	assert.Equal(t, 1, result.Rule.Mismatches)

	rule, ok := result.Group(contracts.GroupBusinessRule)
	require.True(t, ok)
	assert.InDelta(t, 0.5, rule.Score, 1e-9)
	assert.False(t, rule.Passed)
}

func TestEngine_SuspiciousFactAnomalies(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	freebie := fact("536365", date, 1, "0", false)
	bulk := fact("536366", date, 5000, "0.10", false)

	result := e.Run(Input{
		Facts:  []contracts.FactSale{freebie, bulk},
		Counts: contracts.RunCounts{Normalize: emptyStats(2)},
	})

	var price, quantity int
	for _, a := range result.Anomalies {
		if a.Category != contracts.AnomalyPriceQuantity {
			continue
		}
		switch a.Key {
		case "536365":
			price++
			assert.Equal(t, contracts.SeverityMedium, a.Severity)
		case "536366":
			quantity++
			assert.Equal(t, contracts.SeverityHigh, a.Severity)
		}
	}
	assert.Equal(t, 1, price)
	assert.Equal(t, 1, quantity)
}

func TestEngine_SummaryCounts(t *testing.T) {
	e := newTestEngine()
	date := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	stats := emptyStats(10)
	stats.RowsOut = 7
	stats.ParseFailures["quantity"] = 2
	stats.MissingCritical["customer_id"] = 1
	stats.MissingCustomerByDate["2010-12-01"] = 1

	facts := []contracts.FactSale{
		fact("536365", date, 3, "2.50", false),
		fact("C536366", date, -1, "5.00", true),
	}

	result := e.Run(Input{
		Facts: facts,
		Counts: contracts.RunCounts{
			Normalize:  stats,
			Duplicates: 1,
			Facts:      contracts.BuildCounts{Inserted: 2},
		},
		Elapsed: 3 * time.Second,
	})

	s := result.Summary
	assert.Equal(t, 10, s.RowsIn)
	assert.Equal(t, 2, s.ParseFailures)
	assert.Equal(t, 1, s.MissingCritical)
	assert.Equal(t, 1, s.DuplicatesRemoved)
	assert.Equal(t, 2, s.FactsInserted)
	assert.Equal(t, "7.50", s.TotalRevenue.StringFixed(2))
	assert.Equal(t, "5.00", s.TotalReturns.StringFixed(2))
	assert.InDelta(t, 0.5, s.ReturnRate, 1e-9)
	assert.Equal(t, 1, s.DistinctDates)
	assert.Equal(t, 3*time.Second, s.Elapsed)
}
