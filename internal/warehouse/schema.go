package warehouse

import (
	"context"
	"fmt"
)

// schemaDDL creates the warehouse tables. Shapes are load-bearing: the
// fact_sales composite uniqueness backs the pipeline's idempotent re-runs,
// and the natural-key uniqueness on every dimension backs concurrent
// surrogate allocation.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS raw_retail_data (
	id           BIGSERIAL PRIMARY KEY,
	invoice      TEXT,
	stock_code   TEXT,
	description  TEXT,
	quantity     TEXT,
	invoice_date TEXT,
	price        TEXT,
	customer_id  TEXT,
	country      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dim_country (
	country_key  BIGSERIAL PRIMARY KEY,
	country_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_time (
	time_key     BIGSERIAL PRIMARY KEY,
	date_value   DATE NOT NULL UNIQUE,
	year         INT NOT NULL,
	month        INT NOT NULL,
	month_name   TEXT NOT NULL,
	quarter      INT NOT NULL,
	day_of_month INT NOT NULL,
	day_of_week  INT NOT NULL,
	day_name     TEXT NOT NULL,
	is_weekend   BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS dim_product (
	product_key BIGSERIAL PRIMARY KEY,
	stock_code  TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS dim_customer (
	customer_key BIGSERIAL PRIMARY KEY,
	customer_id  BIGINT NOT NULL UNIQUE,
	country_key  BIGINT REFERENCES dim_country (country_key)
);

CREATE TABLE IF NOT EXISTS fact_sales (
	fact_id      BIGSERIAL PRIMARY KEY,
	invoice_no   TEXT NOT NULL,
	product_key  BIGINT NOT NULL REFERENCES dim_product (product_key),
	customer_key BIGINT NOT NULL REFERENCES dim_customer (customer_key),
	time_key     BIGINT NOT NULL REFERENCES dim_time (time_key),
	country_key  BIGINT NOT NULL REFERENCES dim_country (country_key),
	quantity     INT NOT NULL,
	unit_price   NUMERIC(12,2) NOT NULL,
	total_amount NUMERIC(14,2) NOT NULL,
	is_return    BOOLEAN NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (invoice_no, product_key, time_key)
);

CREATE TABLE IF NOT EXISTS quality_reports (
	report_id     BIGSERIAL PRIMARY KEY,
	run_date      DATE NOT NULL UNIQUE,
	overall_score DOUBLE PRECISION NOT NULL,
	passed        BOOLEAN NOT NULL,
	report        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fact_sales_time ON fact_sales (time_key);
CREATE INDEX IF NOT EXISTS idx_fact_sales_product ON fact_sales (product_key);
CREATE INDEX IF NOT EXISTS idx_raw_retail_created ON raw_retail_data (created_at);
`

// EnsureSchema creates all warehouse tables and indexes if absent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create warehouse schema: %w", err)
	}
	return nil
}
