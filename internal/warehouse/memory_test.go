package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wliao/retaildw/internal/contracts"
)

func TestMemory_DimensionUpsert(t *testing.T) {
	mem := NewMemory()
	dims := mem.Dimensions()
	ctx := context.Background()

	first, err := dims.Insert(ctx, contracts.DimCountry, "France", contracts.DimensionAttributes{})
	require.NoError(t, err)

	// Re-inserting an existing natural key returns the same surrogate.
	again, err := dims.Insert(ctx, contracts.DimCountry, "France", contracts.DimensionAttributes{})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := dims.Insert(ctx, contracts.DimCountry, "Germany", contracts.DimensionAttributes{})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	surrogate, found, err := dims.Lookup(ctx, contracts.DimCountry, "France")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, first, surrogate)

	_, found, err = dims.Lookup(ctx, contracts.DimCountry, "Atlantis")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_SurrogatesIndependentPerDimension(t *testing.T) {
	mem := NewMemory()
	dims := mem.Dimensions()
	ctx := context.Background()

	country, err := dims.Insert(ctx, contracts.DimCountry, "France", contracts.DimensionAttributes{})
	require.NoError(t, err)
	product, err := dims.Insert(ctx, contracts.DimProduct, "85123A", contracts.DimensionAttributes{Description: "HOLDER"})
	require.NoError(t, err)

	// Counters run per dimension, so both first allocations get key 1.
	assert.Equal(t, country, product)
}

func TestMemory_ProductDescriptionFirstSightingWins(t *testing.T) {
	mem := NewMemory()
	dims := mem.Dimensions()
	ctx := context.Background()

	_, err := dims.Insert(ctx, contracts.DimProduct, "85123A", contracts.DimensionAttributes{Description: ""})
	require.NoError(t, err)
	_, err = dims.Insert(ctx, contracts.DimProduct, "85123A", contracts.DimensionAttributes{Description: "HEART HOLDER"})
	require.NoError(t, err)
	_, err = dims.Insert(ctx, contracts.DimProduct, "85123A", contracts.DimensionAttributes{Description: "SOMETHING ELSE"})
	require.NoError(t, err)

	// Blank first sighting is backfilled; a real description never
	// overwrites another.
	assert.Equal(t, "HEART HOLDER", mem.ProductDescription("85123A"))
}

func TestMemory_FactInsertIdempotent(t *testing.T) {
	mem := NewMemory()
	facts := mem.Facts()
	ctx := context.Background()

	fact := &contracts.FactSale{
		InvoiceNo:   "536365",
		ProductKey:  1,
		CustomerKey: 1,
		TimeKey:     1,
		CountryKey:  1,
		Quantity:    3,
		UnitPrice:   decimal.RequireFromString("2.50"),
		TotalAmount: decimal.RequireFromString("7.50"),
	}

	inserted, err := facts.Insert(ctx, fact)
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err := facts.Exists(ctx, "536365", 1, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	// Composite-key conflict inserts nothing and is not an error.
	inserted, err = facts.Insert(ctx, fact)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, mem.FactCount())

	differentProduct := *fact
	differentProduct.ProductKey = 2
	inserted, err = facts.Insert(ctx, &differentProduct)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 2, mem.FactCount())
}

func TestMemory_StagingRoundTrip(t *testing.T) {
	mem := NewMemory()
	staging := mem.Staging()
	ctx := context.Background()

	rows := []contracts.RawRow{
		{Invoice: "536365", StockCode: "85123A", Quantity: "3"},
		{Invoice: "536366", StockCode: "71053", Quantity: "1"},
	}

	saved, err := staging.SaveRaw(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	loaded, err := staging.LoadRaw(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "536365", loaded[0].Invoice)
	assert.Equal(t, "536366", loaded[1].Invoice)

	deleted, err := staging.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	loaded, err = staging.LoadRaw(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestMemory_ReportWriteReplacesByRunDate(t *testing.T) {
	mem := NewMemory()
	sink := mem.Reports()
	ctx := context.Background()

	runDate := time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Write(ctx, &contracts.Report{RunDate: runDate, OverallScore: 0.90}))
	require.NoError(t, sink.Write(ctx, &contracts.Report{RunDate: runDate, OverallScore: 0.97}))

	latest := mem.LatestReport()
	require.NotNil(t, latest)
	assert.Equal(t, 0.97, latest.OverallScore)

	later := time.Date(2010, 12, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Write(ctx, &contracts.Report{RunDate: later, OverallScore: 0.80}))

	latest = mem.LatestReport()
	assert.Equal(t, later, latest.RunDate)
}
