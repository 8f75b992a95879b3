package rulegen

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/metabug/rslgen/csvio"
)

// Batch processes an input table through the service and owns the
// checkpoint state: the rows written so far and the save bookkeeping. The
// signal path reaches this object through a captured reference, never
// through package-level state.
type Batch struct {
	svc    *Service
	cfg    *Config
	in     *csvio.Table
	out    *csvio.Table
	rowIdx []int // input row index per processed output row

	processed int
	lastSaved int
	logger    *slog.Logger
	sleep     func(time.Duration)
}

// NewBatch validates the input table against the configured columns and
// prepares the output table. Missing required columns are fatal here;
// nothing has been processed yet.
func NewBatch(svc *Service, in *csvio.Table) (*Batch, error) {
	cfg := svc.config
	if len(in.Rows) == 0 {
		return nil, ErrEmptyInput
	}
	required := []string{
		cfg.Columns.Framework,
		cfg.Columns.Source,
		cfg.Columns.Topic,
		cfg.Columns.Description,
		cfg.Columns.Examples,
	}
	for _, name := range required {
		if in.Column(name) < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	header := append(append([]string{}, in.Header...), OutputColumns...)
	return &Batch{
		svc:    svc,
		cfg:    cfg,
		in:     in,
		out:    &csvio.Table{Header: header},
		logger: svc.logger.With("component", "batch"),
		sleep:  time.Sleep,
	}, nil
}

// Processed returns the number of rows run through the pipeline.
func (b *Batch) Processed() int { return b.processed }

// Output returns the accumulated output table.
func (b *Batch) Output() *csvio.Table { return b.out }

// Run processes every input row in order. Rows with an empty topic pass
// through with blank derived columns. On context cancellation the
// interrupted checkpoint is written and ctx.Err() returned; every other
// per-row problem is recovered in place.
func (b *Batch) Run(ctx context.Context) error {
	total := len(b.in.Rows)
	b.logger.Info("batch start", "rows", total, "save_every", b.cfg.SaveEvery)

	for idx, row := range b.in.Rows {
		if ctx.Err() != nil {
			b.logger.Warn("interrupted, saving checkpoint", "processed", b.processed)
			if err := b.SaveAs("_interrupted"); err != nil {
				b.logger.Error("interrupted save failed", "error", err)
			}
			if err := b.svc.SaveAnnotations(); err != nil {
				b.logger.Warn("annotation save failed", "error", err)
			}
			return ctx.Err()
		}

		topic := strings.TrimSpace(b.in.Cell(row, b.cfg.Columns.Topic))
		if topic == "" {
			b.out.Rows = append(b.out.Rows, appendContent(row, GeneratedContent{}))
			continue
		}
		if b.cfg.MaxRows > 0 && b.processed >= b.cfg.MaxRows {
			b.logger.Info("row cap reached", "max_rows", b.cfg.MaxRows)
			break
		}

		rec := Record{
			Framework:   b.in.Cell(row, b.cfg.Columns.Framework),
			Source:      b.in.Cell(row, b.cfg.Columns.Source),
			Topic:       topic,
			Description: b.in.Cell(row, b.cfg.Columns.Description),
			Examples:    b.in.Cell(row, b.cfg.Columns.Examples),
		}
		content := b.processOne(ctx, idx, rec)
		b.out.Rows = append(b.out.Rows, appendContent(row, content))
		b.rowIdx = append(b.rowIdx, idx)
		b.processed++

		if b.processed%b.cfg.SaveEvery == 0 {
			b.checkpoint()
		}
		if b.cfg.RowDelay > 0 && ctx.Err() == nil && idx < total-1 {
			b.sleep(b.cfg.RowDelay)
		}
	}

	if err := b.SaveAs(""); err != nil {
		return err
	}
	if err := b.svc.SaveAnnotations(); err != nil {
		b.logger.Warn("annotation save failed", "error", err)
	}
	b.logger.Info("batch done", "processed", b.processed)
	return nil
}

// processOne shields the batch from anything unexpected inside a row: the
// worst case is an error marker in the rule column, never a lost batch.
func (b *Batch) processOne(ctx context.Context, idx int, rec Record) (content GeneratedContent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("row panicked", "ordinal", idx, "panic", r)
			content = GeneratedContent{Rule: fmt.Sprintf("ERROR: %v", r)}
		}
	}()
	content, _ = b.svc.ProcessRow(ctx, idx, rec)
	return content
}

// checkpoint rewrites the output and annotation store mid-run.
func (b *Batch) checkpoint() {
	if b.processed == b.lastSaved {
		return
	}
	if err := b.SaveAs(""); err != nil {
		b.logger.Error("checkpoint save failed", "error", err)
		return
	}
	if err := b.svc.SaveAnnotations(); err != nil {
		b.logger.Warn("annotation save failed", "error", err)
	}
	b.lastSaved = b.processed
	b.logger.Info("checkpoint saved", "processed", b.processed)
}

// SaveAs writes the full output table. suffix distinguishes abnormal
// checkpoints: "_interrupted", "_error", "_emergency", or "" for the
// regular output path.
func (b *Batch) SaveAs(suffix string) error {
	path := b.outputPath(suffix)
	if err := csvio.Write(path, b.out); err != nil {
		return fmt.Errorf("rulegen: save batch: %w", err)
	}
	return nil
}

func (b *Batch) outputPath(suffix string) string {
	path := b.cfg.OutputPath
	if path == "" {
		path = derivedOutputPath(b.cfg.InputPath)
	}
	if suffix == "" {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func derivedOutputPath(inputPath string) string {
	if inputPath == "" {
		return "rslgen_out.csv"
	}
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_out" + ext
}

func appendContent(row []string, c GeneratedContent) []string {
	return append(append([]string{}, row...),
		c.Rule, c.Description, c.WebPages, c.Nonexistent, c.Verdict)
}
