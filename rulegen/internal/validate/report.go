package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metabug/rslgen/rulegen/internal/annotate"
	"github.com/metabug/rslgen/rulegen/internal/score"
	"github.com/metabug/rslgen/rulegen/internal/verify"
)

// URL statuses in the consolidated report.
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
	StatusSkipped = "skipped"
)

// URLReport records the fate of one extracted URL.
type URLReport struct {
	URL              string           `json:"url"`
	FinalURL         string           `json:"final_url,omitempty"`
	Status           string           `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	HTTPStatus       int              `json:"http_status,omitempty"`
	Title            string           `json:"title,omitempty"`
	Score            float64          `json:"score"`
	AnnotationsFound int              `json:"annotations_found"`
	Breakdown        *score.Breakdown `json:"breakdown,omitempty"`
	Gate             *verify.Result   `json:"gate,omitempty"`
}

// Report is the consolidated per-record validation artifact.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Framework string    `json:"framework"`
	Topic     string    `json:"topic"`
	Ordinal   int       `json:"ordinal"`

	TotalExtracted int `json:"total_extracted"`
	Skipped        int `json:"skipped"`
	Valid          int `json:"valid"`

	URLs      []URLReport    `json:"urls"`
	Survivors []ValidatedURL `json:"survivors"`
}

func newReport(p *annotate.Profile) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Framework: p.Framework,
		Topic:     p.Topic,
		Ordinal:   p.Ordinal,
	}
}

// unsafeRe matches filename characters outside [A-Za-z0-9_-].
var unsafeRe = regexp.MustCompile(`[^\w-]`)

// sanitize makes s safe for use in a filename, capped at maxLen.
func sanitize(s string, maxLen int) string {
	s = unsafeRe.ReplaceAllString(s, "_")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// Filename derives the report filename from the framework and topic.
func (r *Report) Filename() string {
	return fmt.Sprintf("url_report_%s_%s.json", sanitize(r.Framework, 30), sanitize(r.Topic, 50))
}

// ReportWriter persists consolidated reports under one directory.
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer rooted at dir ("url_reports" if empty).
func NewReportWriter(dir string) *ReportWriter {
	if dir == "" {
		dir = "url_reports"
	}
	return &ReportWriter{dir: dir}
}

// Dir returns the report directory.
func (w *ReportWriter) Dir() string { return w.dir }

// Write persists one report atomically.
func (w *ReportWriter) Write(r *Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("validate: mkdir %s: %w", w.dir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("validate: marshal report: %w", err)
	}
	path := filepath.Join(w.dir, r.Filename())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("validate: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("validate: rename %s: %w", tmp, err)
	}
	return nil
}

// List returns the report filenames under the directory, sorted.
func (w *ReportWriter) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("validate: read dir %s: %w", w.dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read loads one report by filename. Rejects path traversal.
func (w *ReportWriter) Read(name string) (*Report, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("validate: bad report name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return nil, fmt.Errorf("validate: read report %s: %w", name, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("validate: parse report %s: %w", name, err)
	}
	return &r, nil
}
