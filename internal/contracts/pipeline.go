package contracts

// Stage identifies one pipeline stage. Logs and run results reference
// stages through these constants only.
//
// Pipeline flow:
//
//	normalize → dedup → resolve → facts → quality → report
type Stage string

const (
	// StageNormalize cleans and types raw staging rows.
	StageNormalize Stage = "NORMALIZE"

	// StageDedup removes duplicate transaction lines.
	StageDedup Stage = "DEDUP"

	// StageResolve assigns or reuses dimension surrogate keys.
	StageResolve Stage = "RESOLVE"

	// StageFacts computes measures and loads fact rows.
	StageFacts Stage = "FACTS"

	// StageQuality scores the run and detects anomalies.
	StageQuality Stage = "QUALITY"

	// StageReport assembles the multi-section quality report.
	StageReport Stage = "REPORT"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// RunCounts carries every row-level counter of one pipeline run.
// Row-level failures are counted here instead of raised; only
// persistence faults abort a batch.
type RunCounts struct {
	Normalize  NormalizeStats `json:"normalize"`
	Duplicates int            `json:"duplicates_removed"`
	Facts      BuildCounts    `json:"facts"`
}
