package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/internal/dimensions"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/logger"
)

// Builder turns deduplicated staging records into fact rows. It owns the
// total-amount computation and the return classification rule.
type Builder struct {
	resolver *dimensions.Resolver
	store    contracts.FactStore
	config   config.QualityConfig
	logger   *logger.Logger
}

// NewBuilder creates a new fact Builder.
func NewBuilder(resolver *dimensions.Resolver, store contracts.FactStore, cfg config.QualityConfig, log *logger.Logger) *Builder {
	return &Builder{
		resolver: resolver,
		store:    store,
		config:   cfg,
		logger:   log.WithField("stage", contracts.StageFacts.String()),
	}
}

// Build processes staging records into fact rows with insert-if-absent
// semantics on (invoice_no, product_key, time_key): reprocessing the same
// source data inserts nothing and duplicates no revenue.
//
// The returned slice is the run's full analytic view - built rows whether
// inserted or skipped as already-present - so the quality engine sees the
// same data on a first run and a re-run. Rows that fail dimension
// resolution are dropped and counted; store faults abort the batch.
func (b *Builder) Build(ctx context.Context, records []contracts.StagingRecord) ([]contracts.FactSale, contracts.BuildCounts, error) {
	var counts contracts.BuildCounts
	built := make([]contracts.FactSale, 0, len(records))

	for i := range records {
		fact, err := b.buildRow(ctx, &records[i])
		if err != nil {
			var resErr *dimensions.ResolutionError
			if errors.As(err, &resErr) {
				counts.Rejected++
				b.logger.WithFields(map[string]interface{}{
					"invoice": records[i].InvoiceNo,
					"reason":  resErr.Error(),
				}).Debug("Row excluded from fact set")
				continue
			}
			return built, counts, fmt.Errorf("build fact for invoice %s: %w", records[i].InvoiceNo, err)
		}

		if b.isSuspicious(fact) {
			counts.Flagged++
		}

		exists, err := b.store.Exists(ctx, fact.InvoiceNo, fact.ProductKey, fact.TimeKey)
		if err != nil {
			return built, counts, fmt.Errorf("check fact existence for invoice %s: %w", fact.InvoiceNo, err)
		}
		if exists {
			counts.SkippedDuplicate++
			built = append(built, *fact)
			continue
		}

		inserted, err := b.store.Insert(ctx, fact)
		if err != nil {
			return built, counts, fmt.Errorf("insert fact for invoice %s: %w", fact.InvoiceNo, err)
		}
		if inserted {
			counts.Inserted++
		} else {
			// Lost the race to a concurrent partition; same outcome as Exists.
			counts.SkippedDuplicate++
		}
		built = append(built, *fact)
	}

	b.logger.WithFields(map[string]interface{}{
		"inserted": counts.Inserted,
		"skipped":  counts.SkippedDuplicate,
		"rejected": counts.Rejected,
		"flagged":  counts.Flagged,
	}).Info("Fact build completed")

	return built, counts, nil
}

// buildRow resolves the four surrogates and computes measures for one row.
// Country resolves before customer: the customer dimension carries a
// country foreign key.
func (b *Builder) buildRow(ctx context.Context, rec *contracts.StagingRecord) (*contracts.FactSale, error) {
	countryKey, err := b.resolver.ResolveCountry(ctx, rec.Country)
	if err != nil {
		return nil, err
	}

	customerKey, err := b.resolver.ResolveCustomer(ctx, rec.CustomerID, rec.Country)
	if err != nil {
		return nil, err
	}

	productKey, err := b.resolver.ResolveProduct(ctx, rec.StockCode, rec.Description)
	if err != nil {
		return nil, err
	}

	timeKey, err := b.resolver.ResolveTime(ctx, rec.InvoiceDate)
	if err != nil {
		return nil, err
	}

	return &contracts.FactSale{
		InvoiceNo:   rec.InvoiceNo,
		ProductKey:  productKey,
		CustomerKey: customerKey,
		TimeKey:     timeKey,
		CountryKey:  countryKey,
		Quantity:    rec.Quantity,
		UnitPrice:   rec.UnitPrice,
		TotalAmount: rec.UnitPrice.Mul(decimal.NewFromInt(int64(rec.Quantity))),
		IsReturn:    b.classifyReturn(rec),
		Date:        rec.Date(),
	}, nil
}

// classifyReturn marks a transaction as a return when the invoice carries
// the return prefix or the quantity is negative. Either condition alone is
// sufficient.
func (b *Builder) classifyReturn(rec *contracts.StagingRecord) bool {
	return strings.HasPrefix(rec.InvoiceNo, b.config.ReturnPrefix) || rec.Quantity < 0
}

// isSuspicious flags rows with a non-positive unit price or a quantity
// magnitude beyond the configured threshold. Flagged rows still load; they
// become anomaly candidates for the quality engine, not load failures.
func (b *Builder) isSuspicious(fact *contracts.FactSale) bool {
	if !fact.UnitPrice.IsPositive() {
		return true
	}

	qty := fact.Quantity
	if qty < 0 {
		qty = -qty
	}
	return qty > b.config.SuspiciousQuantity
}
