package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wliao/retaildw/internal/contracts"
)

// ErrNoReport is returned when no quality report has been stored yet.
var ErrNoReport = errors.New("no quality report stored")

// ReportMeta describes one stored quality report without its payload.
type ReportMeta struct {
	RunDate      time.Time `json:"run_date"`
	OverallScore float64   `json:"overall_score"`
	Passed       bool      `json:"passed"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reports returns the quality-report sink.
func (p *Postgres) Reports() contracts.ReportSink {
	return &pgReportStore{p: p}
}

type pgReportStore struct {
	p *Postgres
}

// Write persists the report as JSON, replacing any report already stored
// for the same run date. Re-running a day yields one report, not two.
func (s *pgReportStore) Write(ctx context.Context, report *contracts.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}

	_, err = s.p.db.Exec(ctx, `
		INSERT INTO quality_reports (run_date, overall_score, passed, report)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_date) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			passed        = EXCLUDED.passed,
			report        = EXCLUDED.report,
			created_at    = NOW()
	`, report.RunDate, report.OverallScore, report.Passed, payload)
	if err != nil {
		return fmt.Errorf("store quality report: %w", err)
	}

	s.p.logger.WithFields(map[string]interface{}{
		"run_date": report.RunDate.Format("2006-01-02"),
		"score":    report.OverallScore,
		"passed":   report.Passed,
	}).Info("Quality report stored")

	return nil
}

// LatestReport returns the most recently generated quality report.
func (p *Postgres) LatestReport(ctx context.Context) (*contracts.Report, error) {
	var payload []byte
	err := p.db.QueryRow(ctx, `
		SELECT report FROM quality_reports
		ORDER BY run_date DESC
		LIMIT 1
	`).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("load latest report: %w", err)
	}

	var report contracts.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal quality report: %w", err)
	}

	return &report, nil
}

// ListReports returns stored report metadata, most recent first.
func (p *Postgres) ListReports(ctx context.Context, limit int) ([]ReportMeta, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := p.db.Query(ctx, `
		SELECT run_date, overall_score, passed, created_at
		FROM quality_reports
		ORDER BY run_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var metas []ReportMeta
	for rows.Next() {
		var m ReportMeta
		if err := rows.Scan(&m.RunDate, &m.OverallScore, &m.Passed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report metadata: %w", err)
		}
		metas = append(metas, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report metadata rows: %w", err)
	}

	return metas, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
