// Package snapshot persists validated pages as markdown files so a reviewer
// can read the evidence behind a rule without re-fetching it.
//
// The raw HTML is sanitized, reduced to its content region, converted to
// markdown, and written with a YAML frontmatter block.
package snapshot

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/metabug/rslgen/extract"
)

// Config configures the writer.
type Config struct {
	// Dir receives the snapshot files. Default: "page_snapshots".
	Dir string `json:"dir" yaml:"dir"`

	// MaxBytes caps one rendered snapshot. Default: 512KB.
	MaxBytes int `json:"max_bytes" yaml:"max_bytes"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "page_snapshots"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 512 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Writer renders and stores page snapshots.
type Writer struct {
	config    Config
	policy    *bluemonday.Policy
	converter *converter.Converter
	logger    *slog.Logger
	now       func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(cfg Config) *Writer {
	cfg.defaults()
	return &Writer{
		config: cfg,
		policy: bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: cfg.Logger.With("component", "snapshot"),
		now:    time.Now,
	}
}

type frontmatter struct {
	URL       string  `yaml:"url"`
	Title     string  `yaml:"title"`
	SHA256    string  `yaml:"sha256"`
	Relevance float64 `yaml:"relevance"`
	FetchedAt string  `yaml:"fetched_at"`
}

// Snapshot writes one page. The markdown body comes from the content region
// of the document; if conversion yields nothing, the visible text is used.
func (w *Writer) Snapshot(finalURL, title, hash string, body []byte, relevance float64) error {
	md := w.render(finalURL, body)
	if md == "" {
		return fmt.Errorf("snapshot: no renderable content for %s", finalURL)
	}
	if len(md) > w.config.MaxBytes {
		md = md[:w.config.MaxBytes]
	}

	fm, err := yaml.Marshal(frontmatter{
		URL:       finalURL,
		Title:     title,
		SHA256:    hash,
		Relevance: relevance,
		FetchedAt: w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("snapshot: marshal frontmatter: %w", err)
	}

	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", w.config.Dir, err)
	}
	path := filepath.Join(w.config.Dir, Filename(finalURL, hash))
	content := "---\n" + string(fm) + "---\n\n" + md + "\n"

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: rename %s: %w", tmp, err)
	}
	w.logger.Debug("snapshot written", "url", finalURL, "path", path)
	return nil
}

func (w *Writer) render(finalURL string, body []byte) string {
	clean := w.policy.SanitizeBytes(body)

	content, err := extract.ContentHTML(clean)
	if err != nil || strings.TrimSpace(content) == "" {
		content = string(clean)
	}

	md, err := w.converter.ConvertString(content, converter.WithDomain(finalURL))
	if err == nil && strings.TrimSpace(md) != "" {
		return strings.TrimSpace(md)
	}

	// Conversion failed; fall back to visible text.
	page, err := extract.Visible(body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(page.Text)
}

var unsafeRe = regexp.MustCompile(`[^\w-]`)

// Filename derives a stable snapshot name from the URL host+path and the
// body hash.
func Filename(rawURL, hash string) string {
	stem := "page"
	if u, err := url.Parse(rawURL); err == nil {
		stem = u.Hostname() + "_" + strings.Trim(u.Path, "/")
	}
	stem = strings.Trim(unsafeRe.ReplaceAllString(stem, "_"), "_")
	if stem == "" {
		stem = "page"
	}
	if len(stem) > 80 {
		stem = stem[:80]
	}
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return stem + "_" + hash + ".md"
}
