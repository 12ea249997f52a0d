package contracts

import "context"

// DimensionStore is the persistence contract for surrogate-key mappings.
// Implementations must enforce natural-key uniqueness per dimension so that
// concurrent inserts of the same unseen key converge on one surrogate.
type DimensionStore interface {
	// Lookup returns the surrogate for a natural key, if one exists.
	Lookup(ctx context.Context, dim Dimension, naturalKey string) (int64, bool, error)

	// Insert registers a natural key and returns its surrogate. Inserting
	// an already-registered key must return the existing surrogate
	// unchanged (upsert-on-natural-key, not insert-only).
	Insert(ctx context.Context, dim Dimension, naturalKey string, attrs DimensionAttributes) (int64, error)
}

// FactStore is the persistence contract for fact_sales.
type FactStore interface {
	// Exists reports whether a fact with the composite key
	// (invoice_no, product_key, time_key) is already loaded.
	Exists(ctx context.Context, invoiceNo string, productKey, timeKey int64) (bool, error)

	// Insert loads one fact row with insert-if-absent semantics and
	// reports whether a row was actually written. A composite-key
	// conflict is the expected idempotency outcome, not an error.
	Insert(ctx context.Context, fact *FactSale) (bool, error)
}

// StagingStore is the persistence contract for raw_retail_data.
type StagingStore interface {
	// SaveRaw appends raw rows to the staging table.
	SaveRaw(ctx context.Context, rows []RawRow) (int, error)

	// LoadRaw reads the staging table back in load order.
	LoadRaw(ctx context.Context) ([]RawRow, error)

	// Cleanup removes staging rows older than the retention window,
	// returning the number of rows deleted.
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// ReportSink receives the finished per-run quality report. Filename and
// rendering conventions belong to the implementation.
type ReportSink interface {
	Write(ctx context.Context, report *Report) error
}
