package staging

import (
	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

// Deduplicator removes duplicate transaction lines from normalized records.
type Deduplicator struct {
	logger *logger.Logger
}

// NewDeduplicator creates a new Deduplicator instance.
func NewDeduplicator(log *logger.Logger) *Deduplicator {
	return &Deduplicator{logger: log.WithField("stage", contracts.StageDedup.String())}
}

// Dedup keeps exactly one record per (invoice, stock code, timestamp)
// triple: the first occurrence by input order. When duplicates disagree on
// non-key fields the kept row wins; conflicting values are not reconciled.
// Returns the surviving records and the number of duplicates removed.
func (d *Deduplicator) Dedup(records []contracts.StagingRecord) ([]contracts.StagingRecord, int) {
	seen := make(map[string]struct{}, len(records))
	kept := make([]contracts.StagingRecord, 0, len(records))

	for i := range records {
		key := records[i].DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, records[i])
	}

	removed := len(records) - len(kept)

	d.logger.WithFields(map[string]interface{}{
		"rows_in":    len(records),
		"rows_out":   len(kept),
		"duplicates": removed,
	}).Info("Staging deduplication completed")

	return kept, removed
}
