package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/internal/dimensions"
	"github.com/wliao/retaildw/internal/facts"
	"github.com/wliao/retaildw/internal/quality"
	"github.com/wliao/retaildw/internal/report"
	"github.com/wliao/retaildw/internal/staging"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/logger"
)

// Runner orchestrates one warehouse load end to end:
//
//	normalize → dedup → resolve → facts → quality → report
//
// Row-level failures never abort a run; they are counted and surface in
// the quality report. Only persistence faults stop a batch, and even then
// the quality assessment of everything loaded so far is still produced.
type Runner struct {
	normalizer *staging.Normalizer
	dedup      *staging.Deduplicator
	builder    *facts.Builder
	engine     *quality.Engine
	aggregator *report.Aggregator
	sink       contracts.ReportSink
	pipeline   config.PipelineConfig
	logger     *logger.Logger
}

// NewRunner wires the pipeline stages over the given stores.
func NewRunner(
	dims contracts.DimensionStore,
	factStore contracts.FactStore,
	sink contracts.ReportSink,
	cfg *config.Config,
	log *logger.Logger,
) *Runner {
	resolver := dimensions.NewResolver(dims, log)
	return &Runner{
		normalizer: staging.NewNormalizer(log),
		dedup:      staging.NewDeduplicator(log),
		builder:    facts.NewBuilder(resolver, factStore, cfg.Quality, log),
		engine:     quality.NewEngine(cfg.Quality, log),
		aggregator: report.NewAggregator(log),
		sink:       sink,
		pipeline:   cfg.Pipeline,
		logger:     log.WithField("module", "pipeline"),
	}
}

// RunResult is everything one pipeline run produced. It is populated even
// when Run returns an error, so callers can always report what happened.
type RunResult struct {
	Counts  contracts.RunCounts
	Quality contracts.QualityResult
	Report  *contracts.Report
	Elapsed time.Duration
}

// Run executes the full pipeline over one batch of raw rows. Re-running
// the same batch is a no-op at the fact level and regenerates an
// identical report.
func (r *Runner) Run(ctx context.Context, rows []contracts.RawRow) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{}

	r.logger.WithFields(map[string]interface{}{
		"rows":    len(rows),
		"workers": r.pipeline.Workers,
	}).Info("Pipeline run started")

	records, stats := r.normalizer.Normalize(rows)
	result.Counts.Normalize = stats

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("stage %s: %w", contracts.StageDedup, err)
	}

	deduped, removed := r.dedup.Dedup(records)
	result.Counts.Duplicates = removed

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("stage %s: %w", contracts.StageFacts, err)
	}

	built, counts, buildErr := r.buildFacts(ctx, deduped)
	result.Counts.Facts = counts

	// Quality runs over whatever was built, even after a persistence
	// fault, so the run always ends with an assessment.
	result.Quality = r.engine.Run(quality.Input{
		Staging: deduped,
		Facts:   built,
		Counts:  result.Counts,
		Elapsed: time.Since(started),
	})
	result.Report = r.aggregator.Aggregate(&result.Quality)
	result.Elapsed = time.Since(started)

	if buildErr != nil {
		r.logger.WithError(buildErr).Error("Pipeline run aborted by persistence fault")
		return result, fmt.Errorf("stage %s: %w", contracts.StageFacts, buildErr)
	}

	if err := r.sink.Write(ctx, result.Report); err != nil {
		return result, fmt.Errorf("stage %s: %w", contracts.StageReport, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"rows_in":    stats.RowsIn,
		"staged":     stats.RowsOut,
		"duplicates": removed,
		"inserted":   counts.Inserted,
		"skipped":    counts.SkippedDuplicate,
		"rejected":   counts.Rejected,
		"score":      result.Quality.OverallScore,
		"passed":     result.Quality.Passed,
		"elapsed":    result.Elapsed.String(),
	}).Info("Pipeline run completed")

	return result, nil
}

type partitionResult struct {
	date   string
	facts  []contracts.FactSale
	counts contracts.BuildCounts
	err    error
}

// buildFacts loads fact rows through a pool of workers, one date
// partition per job. Partitioning by invoice date keeps each worker's
// dimension lookups cache-friendly while the shared resolver guarantees
// one surrogate per natural key.
func (r *Runner) buildFacts(ctx context.Context, records []contracts.StagingRecord) ([]contracts.FactSale, contracts.BuildCounts, error) {
	workers := r.pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	if workers == 1 || len(records) == 0 {
		return r.builder.Build(ctx, records)
	}

	partitions := partitionByDate(records)

	jobCh := make(chan string, len(partitions))
	resultCh := make(chan partitionResult, len(partitions))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for date := range jobCh {
				facts, counts, err := r.builder.Build(ctx, partitions[date])
				resultCh <- partitionResult{date: date, facts: facts, counts: counts, err: err}
			}
		}()
	}

	dates := make([]string, 0, len(partitions))
	for date := range partitions {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		jobCh <- date
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byDate := make(map[string]partitionResult, len(partitions))
	var firstErr error
	for pr := range resultCh {
		byDate[pr.date] = pr
		if pr.err != nil && firstErr == nil {
			firstErr = pr.err
		}
	}

	// Reassemble in date order so downstream output is deterministic
	// regardless of worker scheduling.
	var (
		built  []contracts.FactSale
		counts contracts.BuildCounts
	)
	for _, date := range dates {
		pr := byDate[date]
		built = append(built, pr.facts...)
		counts.Inserted += pr.counts.Inserted
		counts.SkippedDuplicate += pr.counts.SkippedDuplicate
		counts.Rejected += pr.counts.Rejected
		counts.Flagged += pr.counts.Flagged
	}

	return built, counts, firstErr
}

// partitionByDate buckets staged records by invoice date, preserving
// input order within each bucket.
func partitionByDate(records []contracts.StagingRecord) map[string][]contracts.StagingRecord {
	partitions := make(map[string][]contracts.StagingRecord)
	for _, rec := range records {
		key := rec.Date().Format(contracts.TimeNaturalKey)
		partitions[key] = append(partitions[key], rec)
	}
	return partitions
}
