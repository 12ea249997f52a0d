package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStagingRecord_DedupKey(t *testing.T) {
	morning := StagingRecord{
		InvoiceNo:   "536365",
		StockCode:   "85123A",
		InvoiceDate: time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
	}
	sameLine := morning
	afternoon := morning
	afternoon.InvoiceDate = time.Date(2010, 12, 1, 14, 5, 0, 0, time.UTC)

	assert.Equal(t, morning.DedupKey(), sameLine.DedupKey())
	assert.NotEqual(t, morning.DedupKey(), afternoon.DedupKey())
}

func TestStagingRecord_Date(t *testing.T) {
	rec := StagingRecord{InvoiceDate: time.Date(2010, 12, 1, 23, 59, 59, 0, time.UTC)}
	assert.Equal(t, time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC), rec.Date())
}

func TestNormalizeStats_Counters(t *testing.T) {
	stats := NormalizeStats{
		RowsIn:  100,
		RowsOut: 88,
		ParseFailures: map[string]int{
			"quantity":    5,
			"customer_id": 2,
		},
		MissingCritical: map[string]int{
			"customer_id": 4,
			"stock_code":  1,
		},
	}

	assert.Equal(t, 12, stats.Dropped())
	assert.Equal(t, 4, stats.MissingCustomers())
	assert.Equal(t, 6, stats.UnresolvableCustomers())
}

func TestDimension_Table(t *testing.T) {
	tests := []struct {
		dim   Dimension
		table string
	}{
		{DimProduct, "dim_product"},
		{DimCustomer, "dim_customer"},
		{DimTime, "dim_time"},
		{DimCountry, "dim_country"},
		{Dimension("unknown"), ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.table, tt.dim.Table())
	}
}

func TestReport_Section(t *testing.T) {
	report := Report{
		Sections: []Section{
			{Name: SectionDaily},
			{Name: SectionOverall},
		},
	}

	s, ok := report.Section(SectionOverall)
	assert.True(t, ok)
	assert.Equal(t, SectionOverall, s.Name)

	_, ok = report.Section(SectionMonthlyTrends)
	assert.False(t, ok)
}
