package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

// Postgres is the warehouse storage facade on pgx. Each storage contract
// is exposed as a typed view over the shared pool: dimension surrogate
// mappings, fact loading, raw staging and report history. Natural-key
// uniqueness is enforced by the schema, so upserts are safe under
// concurrent writers.
type Postgres struct {
	db        *pgxpool.Pool
	batchSize int
	logger    *logger.Logger
}

// NewPostgres creates a Postgres warehouse store.
func NewPostgres(db *pgxpool.Pool, batchSize int, log *logger.Logger) *Postgres {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Postgres{
		db:        db,
		batchSize: batchSize,
		logger:    log.WithField("module", "warehouse"),
	}
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.db
}

// Dimensions returns the surrogate-key mapping store.
func (p *Postgres) Dimensions() contracts.DimensionStore {
	return &pgDimensionStore{p: p}
}

// Facts returns the fact_sales store.
func (p *Postgres) Facts() contracts.FactStore {
	return &pgFactStore{p: p}
}

// Staging returns the raw_retail_data store.
func (p *Postgres) Staging() contracts.StagingStore {
	return &pgStagingStore{p: p}
}

type pgDimensionStore struct {
	p *Postgres
}

var lookupQueries = map[contracts.Dimension]string{
	contracts.DimCountry:  `SELECT country_key FROM dim_country WHERE country_name = $1`,
	contracts.DimProduct:  `SELECT product_key FROM dim_product WHERE stock_code = $1`,
	contracts.DimCustomer: `SELECT customer_key FROM dim_customer WHERE customer_id = $1::BIGINT`,
	contracts.DimTime:     `SELECT time_key FROM dim_time WHERE date_value = $1::DATE`,
}

// Lookup returns the surrogate for a natural key, if registered.
func (s *pgDimensionStore) Lookup(ctx context.Context, dim contracts.Dimension, naturalKey string) (int64, bool, error) {
	query, ok := lookupQueries[dim]
	if !ok {
		return 0, false, fmt.Errorf("unknown dimension %q", dim)
	}

	var surrogate int64
	err := s.p.db.QueryRow(ctx, query, naturalKey).Scan(&surrogate)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup %s key %q: %w", dim, naturalKey, err)
	}

	return surrogate, true, nil
}

// Insert registers a natural key and returns its surrogate. Re-inserting
// an existing key returns the already-assigned surrogate unchanged; for
// products the first non-empty description wins.
func (s *pgDimensionStore) Insert(ctx context.Context, dim contracts.Dimension, naturalKey string, attrs contracts.DimensionAttributes) (int64, error) {
	var (
		surrogate int64
		err       error
	)

	switch dim {
	case contracts.DimCountry:
		err = s.p.db.QueryRow(ctx, `
			INSERT INTO dim_country (country_name) VALUES ($1)
			ON CONFLICT (country_name) DO UPDATE SET country_name = EXCLUDED.country_name
			RETURNING country_key
		`, naturalKey).Scan(&surrogate)

	case contracts.DimProduct:
		err = s.p.db.QueryRow(ctx, `
			INSERT INTO dim_product (stock_code, description) VALUES ($1, $2)
			ON CONFLICT (stock_code) DO UPDATE SET
				description = COALESCE(NULLIF(dim_product.description, ''), EXCLUDED.description)
			RETURNING product_key
		`, naturalKey, attrs.Description).Scan(&surrogate)

	case contracts.DimCustomer:
		err = s.p.db.QueryRow(ctx, `
			INSERT INTO dim_customer (customer_id, country_key) VALUES ($1::BIGINT, $2)
			ON CONFLICT (customer_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
			RETURNING customer_key
		`, naturalKey, attrs.CountryKey).Scan(&surrogate)

	case contracts.DimTime:
		if attrs.Time == nil {
			return 0, fmt.Errorf("insert time key %q: missing time attributes", naturalKey)
		}
		t := attrs.Time
		err = s.p.db.QueryRow(ctx, `
			INSERT INTO dim_time (
				date_value, year, month, month_name, quarter,
				day_of_month, day_of_week, day_name, is_weekend
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (date_value) DO UPDATE SET date_value = EXCLUDED.date_value
			RETURNING time_key
		`, t.Date, t.Year, t.Month, t.MonthName, t.Quarter,
			t.DayOfMonth, t.DayOfWeek, t.DayName, t.IsWeekend).Scan(&surrogate)

	default:
		return 0, fmt.Errorf("unknown dimension %q", dim)
	}

	if err != nil {
		return 0, fmt.Errorf("insert %s key %q: %w", dim, naturalKey, err)
	}

	return surrogate, nil
}

type pgFactStore struct {
	p *Postgres
}

// Exists reports whether a fact with the composite key is already loaded.
func (s *pgFactStore) Exists(ctx context.Context, invoiceNo string, productKey, timeKey int64) (bool, error) {
	var exists bool
	err := s.p.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fact_sales
			WHERE invoice_no = $1 AND product_key = $2 AND time_key = $3
		)
	`, invoiceNo, productKey, timeKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fact existence: %w", err)
	}
	return exists, nil
}

// Insert loads one fact row. A composite-key conflict inserts nothing and
// returns false: the expected idempotency outcome, not an error.
func (s *pgFactStore) Insert(ctx context.Context, fact *contracts.FactSale) (bool, error) {
	tag, err := s.p.db.Exec(ctx, `
		INSERT INTO fact_sales (
			invoice_no, product_key, customer_key, time_key, country_key,
			quantity, unit_price, total_amount, is_return
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (invoice_no, product_key, time_key) DO NOTHING
	`, fact.InvoiceNo, fact.ProductKey, fact.CustomerKey, fact.TimeKey,
		fact.CountryKey, fact.Quantity, fact.UnitPrice, fact.TotalAmount, fact.IsReturn)
	if err != nil {
		return false, fmt.Errorf("insert fact for invoice %s: %w", fact.InvoiceNo, err)
	}

	return tag.RowsAffected() > 0, nil
}

type pgStagingStore struct {
	p *Postgres
}

// SaveRaw appends raw rows to the staging table in batched transactions.
func (s *pgStagingStore) SaveRaw(ctx context.Context, rows []contracts.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO raw_retail_data (
			invoice, stock_code, description, quantity,
			invoice_date, price, customer_id, country
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	saved := 0
	for start := 0; start < len(rows); start += s.p.batchSize {
		end := start + s.p.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		tx, err := s.p.db.Begin(ctx)
		if err != nil {
			return saved, fmt.Errorf("begin staging batch: %w", err)
		}

		for i := start; i < end; i++ {
			r := &rows[i]
			if _, err := tx.Exec(ctx, query,
				r.Invoice, r.StockCode, r.Description, r.Quantity,
				r.InvoiceDate, r.Price, r.CustomerID, r.Country,
			); err != nil {
				tx.Rollback(ctx)
				return saved, fmt.Errorf("insert staging row: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return saved, fmt.Errorf("commit staging batch: %w", err)
		}
		saved += end - start
	}

	s.p.logger.WithField("rows", saved).Info("Raw rows staged")
	return saved, nil
}

// LoadRaw reads the staging table back in load order.
func (s *pgStagingStore) LoadRaw(ctx context.Context) ([]contracts.RawRow, error) {
	rows, err := s.p.db.Query(ctx, `
		SELECT
			COALESCE(invoice, ''), COALESCE(stock_code, ''),
			COALESCE(description, ''), COALESCE(quantity, ''),
			COALESCE(invoice_date, ''), COALESCE(price, ''),
			COALESCE(customer_id, ''), COALESCE(country, '')
		FROM raw_retail_data
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query staging rows: %w", err)
	}
	defer rows.Close()

	var raw []contracts.RawRow
	for rows.Next() {
		var r contracts.RawRow
		if err := rows.Scan(
			&r.Invoice, &r.StockCode, &r.Description, &r.Quantity,
			&r.InvoiceDate, &r.Price, &r.CustomerID, &r.Country,
		); err != nil {
			return nil, fmt.Errorf("scan staging row: %w", err)
		}
		raw = append(raw, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("staging rows: %w", err)
	}

	return raw, nil
}

// Cleanup removes staging rows past the retention window. Staging is
// ephemeral; the fact table is the durable record.
func (s *pgStagingStore) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := s.p.db.Exec(ctx, `
		DELETE FROM raw_retail_data
		WHERE created_at < NOW() - ($1 * INTERVAL '1 day')
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("cleanup staging rows: %w", err)
	}

	deleted := tag.RowsAffected()
	s.p.logger.WithFields(map[string]interface{}{
		"deleted":        deleted,
		"retention_days": retentionDays,
	}).Info("Staging cleanup completed")

	return deleted, nil
}

// Summary holds warehouse-wide row counts and totals for status reporting.
type Summary struct {
	StagingRows       int64     `json:"staging_rows"`
	FactRows          int64     `json:"fact_rows"`
	Customers         int64     `json:"customers"`
	Products          int64     `json:"products"`
	Countries         int64     `json:"countries"`
	Dates             int64     `json:"dates"`
	TotalRevenue      string    `json:"total_revenue"`
	TotalReturns      string    `json:"total_returns"`
	ReturnRatePercent float64   `json:"return_rate_percent"`
	DateRangeStart    time.Time `json:"date_range_start"`
	DateRangeEnd      time.Time `json:"date_range_end"`
}

// Summarize computes the warehouse summary in one round trip.
func (p *Postgres) Summarize(ctx context.Context) (*Summary, error) {
	var s Summary
	err := p.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM raw_retail_data),
			(SELECT COUNT(*) FROM fact_sales),
			(SELECT COUNT(*) FROM dim_customer),
			(SELECT COUNT(*) FROM dim_product),
			(SELECT COUNT(*) FROM dim_country),
			(SELECT COUNT(*) FROM dim_time),
			COALESCE((SELECT SUM(total_amount)::TEXT FROM fact_sales WHERE is_return = FALSE), '0'),
			COALESCE((SELECT SUM(ABS(total_amount))::TEXT FROM fact_sales WHERE is_return = TRUE), '0'),
			COALESCE((SELECT COUNT(*) FILTER (WHERE is_return) * 100.0 / NULLIF(COUNT(*), 0) FROM fact_sales), 0),
			COALESCE((SELECT MIN(date_value) FROM dim_time), '1970-01-01'::DATE),
			COALESCE((SELECT MAX(date_value) FROM dim_time), '1970-01-01'::DATE)
	`).Scan(
		&s.StagingRows, &s.FactRows, &s.Customers, &s.Products,
		&s.Countries, &s.Dates, &s.TotalRevenue, &s.TotalReturns,
		&s.ReturnRatePercent, &s.DateRangeStart, &s.DateRangeEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize warehouse: %w", err)
	}

	return &s, nil
}
