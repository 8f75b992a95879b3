package rulegen

import (
	"github.com/metabug/rslgen/rulegen/internal/annotate"
)

// Record is one input row of the inspection corpus.
type Record = annotate.Record

// GeneratedContent is the per-row output bundle: the five derived columns.
type GeneratedContent struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	WebPages    string `json:"web_pages"`
	Nonexistent string `json:"nonexistent_functions"`
	Verdict     string `json:"verdict"`
}

// StageStatus tells how a stage's output was produced.
type StageStatus string

const (
	// StagePrimary means the primary path succeeded.
	StagePrimary StageStatus = "primary"
	// StageFallback means a fallback path produced the output.
	StageFallback StageStatus = "fallback"
	// StageFailed means both paths failed; the output is an error string.
	StageFailed StageStatus = "failed"
)

// StageResult carries a stage's output and how it was obtained. Failures
// surface as variants, not as errors up the call chain: the orchestrator
// always continues to the next stage.
type StageResult struct {
	Status StageStatus `json:"status"`
	Output string      `json:"output"`
	Err    error       `json:"-"`
}

// RowStages records the outcome variant of each pipeline stage for one row.
type RowStages struct {
	Rule        StageResult `json:"rule"`
	Description StageResult `json:"description"`
	Search      StageResult `json:"search"`
	Validation  StageResult `json:"validation"`
	Nonexistent StageResult `json:"nonexistent"`
	Verdict     StageResult `json:"verdict"`
}

// Failed reports whether any stage failed outright.
func (r *RowStages) Failed() bool {
	for _, s := range []StageResult{r.Rule, r.Description, r.Search, r.Validation, r.Nonexistent, r.Verdict} {
		if s.Status == StageFailed {
			return true
		}
	}
	return false
}
