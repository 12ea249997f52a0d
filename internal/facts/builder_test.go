package facts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/internal/dimensions"
	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/logger"
)

func newTestBuilder(mem *warehouse.Memory) *Builder {
	log := logger.NewNop()
	resolver := dimensions.NewResolver(mem.Dimensions(), log)
	return NewBuilder(resolver, mem.Facts(), config.DefaultQuality(), log)
}

func record(invoice, stockCode string, qty int, price string) contracts.StagingRecord {
	return contracts.StagingRecord{
		InvoiceNo:   invoice,
		StockCode:   stockCode,
		Description: "TEST PRODUCT",
		Quantity:    qty,
		InvoiceDate: time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		UnitPrice:   decimal.RequireFromString(price),
		CustomerID:  17850,
		Country:     "United Kingdom",
	}
}

func TestBuilder_SaleMeasures(t *testing.T) {
	b := newTestBuilder(warehouse.NewMemory())

	built, counts, err := b.Build(context.Background(), []contracts.StagingRecord{
		record("536365", "85123A", 3, "2.50"),
	})
	require.NoError(t, err)
	require.Len(t, built, 1)
	assert.Equal(t, 1, counts.Inserted)

	f := built[0]
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("7.50")),
		"total %s", f.TotalAmount)
	assert.False(t, f.IsReturn)
	assert.True(t, f.AmountConsistent())
	assert.Positive(t, f.ProductKey)
	assert.Positive(t, f.CustomerKey)
	assert.Positive(t, f.TimeKey)
	assert.Positive(t, f.CountryKey)
}

func TestBuilder_ReturnMeasures(t *testing.T) {
	b := newTestBuilder(warehouse.NewMemory())

	built, _, err := b.Build(context.Background(), []contracts.StagingRecord{
		record("C100", "85123A", -2, "5.00"),
	})
	require.NoError(t, err)
	require.Len(t, built, 1)

	f := built[0]
	assert.True(t, f.IsReturn)
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("-10.00")),
		"total %s", f.TotalAmount)
}

func TestBuilder_ReturnClassification(t *testing.T) {
	tests := []struct {
		name     string
		invoice  string
		qty      int
		isReturn bool
	}{
		{name: "plain sale", invoice: "536365", qty: 3, isReturn: false},
		{name: "prefix only", invoice: "C536365", qty: 3, isReturn: true},
		{name: "negative quantity only", invoice: "536365", qty: -3, isReturn: true},
		{name: "prefix and negative", invoice: "C536365", qty: -3, isReturn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(warehouse.NewMemory())

			built, _, err := b.Build(context.Background(), []contracts.StagingRecord{
				record(tt.invoice, "85123A", tt.qty, "1.00"),
			})
			require.NoError(t, err)
			require.Len(t, built, 1)
			assert.Equal(t, tt.isReturn, built[0].IsReturn)
		})
	}
}

func TestBuilder_IdempotentRerun(t *testing.T) {
	mem := warehouse.NewMemory()
	records := []contracts.StagingRecord{
		record("536365", "85123A", 3, "2.50"),
		record("536365", "71053", 2, "3.39"),
	}

	b := newTestBuilder(mem)
	built1, counts1, err := b.Build(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, counts1.Inserted)
	assert.Equal(t, 2, mem.FactCount())

	// Second run over the same source: nothing inserts, but the analytic
	// view is identical so quality output does not change.
	b2 := newTestBuilder(mem)
	built2, counts2, err := b2.Build(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 0, counts2.Inserted)
	assert.Equal(t, 2, counts2.SkippedDuplicate)
	assert.Equal(t, 2, mem.FactCount())

	require.Len(t, built2, len(built1))
	for i := range built1 {
		assert.Equal(t, built1[i].InvoiceNo, built2[i].InvoiceNo)
		assert.True(t, built1[i].TotalAmount.Equal(built2[i].TotalAmount))
		assert.Equal(t, built1[i].ProductKey, built2[i].ProductKey)
		assert.Equal(t, built1[i].TimeKey, built2[i].TimeKey)
	}
}

func TestBuilder_ResolutionFailureRejectsRow(t *testing.T) {
	b := newTestBuilder(warehouse.NewMemory())

	bad := record("536365", "85123A", 1, "1.00")
	bad.Country = ""
	good := record("536366", "85123A", 1, "1.00")

	built, counts, err := b.Build(context.Background(), []contracts.StagingRecord{bad, good})
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Rejected)
	assert.Equal(t, 1, counts.Inserted)
	require.Len(t, built, 1)
	assert.Equal(t, "536366", built[0].InvoiceNo)
}

func TestBuilder_SuspiciousRowsFlaggedNotRejected(t *testing.T) {
	b := newTestBuilder(warehouse.NewMemory())

	freebie := record("536365", "85123A", 1, "0")
	bulk := record("536366", "71053", 5000, "0.10")
	normal := record("536367", "22423", 2, "1.25")

	built, counts, err := b.Build(context.Background(), []contracts.StagingRecord{freebie, bulk, normal})
	require.NoError(t, err)

	assert.Equal(t, 2, counts.Flagged)
	assert.Equal(t, 3, counts.Inserted)
	assert.Len(t, built, 3)
}

func TestBuilder_SharedDimensionsAcrossRows(t *testing.T) {
	mem := warehouse.NewMemory()
	b := newTestBuilder(mem)

	built, _, err := b.Build(context.Background(), []contracts.StagingRecord{
		record("536365", "85123A", 1, "1.00"),
		record("536366", "85123A", 2, "1.00"),
	})
	require.NoError(t, err)
	require.Len(t, built, 2)

	assert.Equal(t, built[0].ProductKey, built[1].ProductKey)
	assert.Equal(t, built[0].CustomerKey, built[1].CustomerKey)
	assert.Equal(t, built[0].CountryKey, built[1].CountryKey)
	assert.Equal(t, built[0].TimeKey, built[1].TimeKey)
}
