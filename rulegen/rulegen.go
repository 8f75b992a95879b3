// Package rulegen converts tabular static-analysis inspection rows into
// rule artifacts: for each row it generates an RSL rule and description,
// searches for supporting third-party documentation, validates and scores
// the found pages, and asks external judges for a verdict.
package rulegen

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/metabug/rslgen/genai"
	"github.com/metabug/rslgen/rulegen/internal/annotate"
	"github.com/metabug/rslgen/rulegen/internal/query"
	"github.com/metabug/rslgen/rulegen/internal/snapshot"
	runstore "github.com/metabug/rslgen/rulegen/internal/store"
	"github.com/metabug/rslgen/rulegen/internal/validate"
	"github.com/metabug/rslgen/rulegen/internal/verify"
)

// Service is the per-row pipeline orchestrator.
type Service struct {
	config      *Config
	gen         genai.Generator
	searcher    genai.Searcher
	verifier    genai.Generator
	assets      Assets
	assetsSet   bool
	annotations *annotate.Store
	pipeline    *validate.Pipeline
	reports     *validate.ReportWriter
	fallback    *FallbackTable
	runlog      *runstore.Store
	snap        *snapshot.Writer
	logger      *slog.Logger
	sleep       func(time.Duration)
}

// ServiceOption customises NewService.
type ServiceOption func(*Service)

// WithSearcher wires the web-search collaborator. Without it stage 3 always
// takes the curated fallback path.
func WithSearcher(s genai.Searcher) ServiceOption {
	return func(svc *Service) { svc.searcher = s }
}

// WithVerifier wires the borderline-gate collaborator.
func WithVerifier(gen genai.Generator) ServiceOption {
	return func(svc *Service) { svc.verifier = gen }
}

// RunLogSchema creates the run-log tables. Pass to dbopen.WithSchema when
// opening the database handed to WithRunLogDB.
const RunLogSchema = runstore.Schema

// WithRunLog wires the SQLite run log.
func WithRunLog(s *runstore.Store) ServiceOption {
	return func(svc *Service) { svc.runlog = s }
}

// WithRunLogDB wires the run log over an opened database. The schema must
// already be applied.
func WithRunLogDB(db *sql.DB) ServiceOption {
	return func(svc *Service) { svc.runlog = runstore.New(db) }
}

// WithAssets injects the prompt assets directly instead of loading them
// from the configured paths.
func WithAssets(a Assets) ServiceOption {
	return func(svc *Service) { svc.assets = a; svc.assetsSet = true }
}

// WithFallbackTable replaces the built-in curated documentation table.
func WithFallbackTable(t *FallbackTable) ServiceOption {
	return func(svc *Service) { svc.fallback = t }
}

// NewService creates the orchestrator. gen is required; everything else
// degrades gracefully when absent.
func NewService(cfg *Config, gen genai.Generator, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		config:   cfg,
		gen:      gen,
		fallback: NewFallbackTable(),
		logger:   logger.With("component", "rulegen"),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if !svc.assetsSet {
		assets, err := LoadAssets(cfg)
		if err != nil {
			return nil, err
		}
		svc.assets = assets
	}
	if cfg.FallbackTablePath != "" {
		table, err := LoadFallbackTable(cfg.FallbackTablePath)
		if err != nil {
			return nil, err
		}
		svc.fallback = table
	}

	svc.annotations = annotate.NewStore(logger)
	svc.annotations.Load(cfg.AnnotationStorePath)

	svc.reports = validate.NewReportWriter(cfg.ReportDir)

	if cfg.SnapshotDir != "" {
		svc.snap = snapshot.NewWriter(snapshot.Config{Dir: cfg.SnapshotDir, Logger: logger})
	}

	var gate *verify.Gate
	if svc.verifier != nil {
		gate = verify.NewGate(svc.verifier, logger)
	}

	vcfg := cfg.Validate
	vcfg.Logger = logger
	var snapper validate.Snapshotter
	if svc.snap != nil {
		snapper = svc.snap
	}
	svc.pipeline = validate.New(vcfg, gate, svc.reports, snapper)

	return svc, nil
}

// Annotations exposes the cumulative extraction store.
func (s *Service) Annotations() *annotate.Store { return s.annotations }

// Reports exposes the URL-report directory.
func (s *Service) Reports() *validate.ReportWriter { return s.reports }

// RunLog exposes the SQLite run log, or nil.
func (s *Service) RunLog() *runstore.Store { return s.runlog }

// SaveAnnotations persists the cumulative extraction store.
func (s *Service) SaveAnnotations() error {
	return s.annotations.ExportTo(s.config.AnnotationStorePath)
}

func (s *Service) maxURLs() int {
	if s.config.Validate.MaxURLs > 0 {
		return s.config.Validate.MaxURLs
	}
	return 2
}

// ProcessRow runs the five-stage pipeline for one record. A stage failure
// never aborts the row: its output is a degraded variant and downstream
// stages run with that output as input.
func (s *Service) ProcessRow(ctx context.Context, ordinal int, rec Record) (GeneratedContent, *RowStages) {
	start := time.Now()
	stages := &RowStages{}
	logger := s.logger.With("ordinal", ordinal, "topic", truncate(rec.Topic, 60))
	logger.Info("processing row")

	// Stage 1: rule.
	logger.Info("stage 1/5: generating rule")
	instructions, input := rulePrompt(s.assets, rec)
	stages.Rule = s.generate(ctx, "generating rule", instructions, input)
	s.pause(ctx)

	// Stage 2: description.
	logger.Info("stage 2/5: generating description")
	instructions, input = descriptionPrompt(rec, stages.Rule.Output)
	stages.Description = s.generate(ctx, "generating description", instructions, input)
	s.pause(ctx)

	// Stage 3: web search. Extraction happens here because the candidates
	// derive from the profile.
	logger.Info("stage 3/5: web search")
	profile := s.annotations.ExtractAndStore(ordinal, rec)
	stages.Search = s.search(ctx, rec, profile)
	s.pause(ctx)

	// Stage 4: URL validation.
	logger.Info("stage 4/5: validating URLs")
	webPages, report := s.pipeline.Validate(ctx, stages.Search.Output, profile)
	stages.Validation = StageResult{Status: StagePrimary, Output: webPages}
	s.pause(ctx)

	// Stage 5: function-existence check and verdict. Independent calls
	// over the same context.
	logger.Info("stage 5/5: evaluation")
	instructions, input = nonexistentPrompt(s.assets, rec, stages.Rule.Output, stages.Description.Output, webPages)
	stages.Nonexistent = s.generate(ctx, "reporting functions", instructions, input)

	stages.Verdict = s.judge(ctx, rec, stages.Rule.Output, stages.Description.Output, webPages)

	content := GeneratedContent{
		Rule:        stages.Rule.Output,
		Description: stages.Description.Output,
		WebPages:    webPages,
		Nonexistent: stages.Nonexistent.Output,
		Verdict:     stages.Verdict.Output,
	}
	s.record(ctx, ordinal, rec, content, stages, report, time.Since(start))

	logger.Info("row done",
		"duration_ms", time.Since(start).Milliseconds(),
		"urls_valid", report.Valid,
		"degraded", stages.Failed())
	return content, stages
}

// generate wraps one collaborator call as a stage variant. Per contract,
// errors become a textual placeholder in the output field.
func (s *Service) generate(ctx context.Context, op, instructions, input string) StageResult {
	out, err := s.gen.Generate(ctx, instructions, input)
	if err != nil {
		s.logger.Warn("stage degraded", "op", op, "error", err)
		return StageResult{
			Status: StageFailed,
			Output: fmt.Sprintf("Error %s: %v", op, err),
			Err:    err,
		}
	}
	return StageResult{Status: StagePrimary, Output: strings.TrimSpace(out)}
}

// search runs stage 3: web search guided by the candidate queries, with the
// curated table as the fallback variant on total failure.
func (s *Service) search(ctx context.Context, rec Record, profile *annotate.Profile) StageResult {
	if s.searcher == nil {
		return StageResult{Status: StageFallback, Output: s.fallback.Lookup(rec.Framework)}
	}

	candidates := query.Candidates(profile)
	prompt := searchPrompt(rec, profile.Annotations.All, candidates, s.maxURLs())

	raw, err := s.searcher.Search(ctx, prompt)
	if err != nil {
		s.logger.Warn("web search failed, using curated fallback", "error", err)
		return StageResult{Status: StageFallback, Output: s.fallback.Lookup(rec.Framework), Err: err}
	}
	return StageResult{Status: StagePrimary, Output: s.dropExcludedLines(raw)}
}

// dropExcludedLines removes result lines mentioning an excluded domain
// before validation even sees them.
func (s *Service) dropExcludedLines(text string) string {
	domains := s.config.Validate.ExcludedDomains
	if domains == nil {
		domains = validate.DefaultExcludedDomains
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		excluded := false
		for _, d := range domains {
			if strings.Contains(lower, d) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// judge runs the correctness verdict with the two-level fallback: primary
// judge, then a secondary evaluation over the curated pages, then a marked
// failure string.
func (s *Service) judge(ctx context.Context, rec Record, rule, description, webPages string) StageResult {
	instructions, input := judgePrompt(s.assets, rec, rule, description, webPages)
	out, err := s.gen.Generate(ctx, instructions, input)
	if err == nil {
		return StageResult{Status: StagePrimary, Output: strings.TrimSpace(out)}
	}
	s.logger.Warn("judge failed, running fallback evaluation", "error", err)

	fallbackPages := s.fallback.Lookup(rec.Framework)
	instructions, input = fallbackJudgePrompt(s.assets, rec, rule, description, fallbackPages)
	out, err2 := s.gen.Generate(ctx, instructions, input)
	if err2 == nil {
		return StageResult{Status: StageFallback, Output: "[FBO] " + strings.TrimSpace(out), Err: err}
	}
	return StageResult{
		Status: StageFailed,
		Output: fmt.Sprintf("[FBO] No - fallback evaluation failed: %v", err2),
		Err:    err2,
	}
}

// record persists the row outcome to the run log, when configured.
func (s *Service) record(ctx context.Context, ordinal int, rec Record, content GeneratedContent, stages *RowStages, report *validate.Report, elapsed time.Duration) {
	if s.runlog == nil {
		return
	}
	status := runstore.RowOK
	if stages.Failed() {
		status = runstore.RowError
	}
	err := s.runlog.RecordRow(ctx, runstore.RowResult{
		Ordinal:     ordinal,
		Framework:   rec.Framework,
		Topic:       rec.Topic,
		Rule:        content.Rule,
		Description: content.Description,
		WebPages:    content.WebPages,
		Nonexistent: content.Nonexistent,
		Verdict:     content.Verdict,
		Status:      status,
		DurationMS:  elapsed.Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("run log row failed", "ordinal", ordinal, "error", err)
	}

	checks := make([]runstore.URLCheck, 0, len(report.URLs))
	for _, u := range report.URLs {
		checks = append(checks, runstore.URLCheck{
			Ordinal:  ordinal,
			URL:      u.URL,
			FinalURL: u.FinalURL,
			Status:   u.Status,
			Reason:   u.Reason,
			Score:    u.Score,
		})
	}
	if err := s.runlog.RecordURLChecks(ctx, ordinal, checks); err != nil {
		s.logger.Warn("run log url checks failed", "ordinal", ordinal, "error", err)
	}
}

// pause sleeps the inter-stage delay unless the context is already gone.
func (s *Service) pause(ctx context.Context) {
	if s.config.StageDelay <= 0 || ctx.Err() != nil {
		return
	}
	s.sleep(s.config.StageDelay)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
