// Package validate turns raw search output into a ranked, verified list of
// third-party documentation URLs.
//
// Every extracted URL is either skipped (excluded domain), invalid (fetch
// failure or low relevance), or valid. The consolidated per-row report is a
// side artifact; failing to persist it never fails the pipeline.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/metabug/rslgen/extract"
	"github.com/metabug/rslgen/rulegen/internal/annotate"
	"github.com/metabug/rslgen/rulegen/internal/fetch"
	"github.com/metabug/rslgen/rulegen/internal/score"
	"github.com/metabug/rslgen/rulegen/internal/verify"
)

// NoResultsSentence is the fixed output when no URL passes the threshold.
const NoResultsSentence = "No relevant 3rd-party URLs could be verified."

// urlRe matches http(s) tokens greedily up to whitespace, closing
// punctuation, or quotes.
var urlRe = regexp.MustCompile(`https?://[^\s\)\]\}\>\"\',]+`)

// trailingPunctRe strips sentence punctuation glued to the end of a URL.
var trailingPunctRe = regexp.MustCompile(`[.,;:!?\)\]\}]+$`)

// DefaultExcludedDomains lists the originating organization's own
// properties. First-party documentation is not "third-party evidence".
var DefaultExcludedDomains = []string{
	"jetbrains.com",
	"jetbrains.cn",
	"jetbrains.net",
	"intellij.com",
	"youtrack.jetbrains.com",
}

// Config configures the validation pipeline.
type Config struct {
	// MaxURLs surviving into the formatted output. Default: 2.
	MaxURLs int `json:"max_urls" yaml:"max_urls"`

	// MinRelevance a URL must reach to be valid. Default: 0.30.
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// Timeout per page fetch. Default: 15s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ExcludedDomains are matched by host suffix.
	// Default: DefaultExcludedDomains.
	ExcludedDomains []string `json:"excluded_domains" yaml:"excluded_domains"`

	// TitleMaxLen truncates page titles in results. Default: 100.
	TitleMaxLen int `json:"title_max_len" yaml:"title_max_len"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxURLs <= 0 {
		c.MaxURLs = 2
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = 0.30
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.ExcludedDomains == nil {
		c.ExcludedDomains = DefaultExcludedDomains
	}
	if c.TitleMaxLen <= 0 {
		c.TitleMaxLen = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Snapshotter persists a readable copy of a validated page.
type Snapshotter interface {
	Snapshot(finalURL, title, hash string, body []byte, relevance float64) error
}

// ValidatedURL is one surviving page.
type ValidatedURL struct {
	URL              string  `json:"url"`
	Title            string  `json:"title"`
	Score            float64 `json:"score"`
	AnnotationsFound int     `json:"annotations_found"`
}

// Pipeline validates URLs for one record at a time.
type Pipeline struct {
	fetcher *fetch.Fetcher
	gate    *verify.Gate
	reports *ReportWriter
	snap    Snapshotter
	config  Config
	logger  *slog.Logger
}

// New creates a Pipeline. gate may be nil (no borderline verification);
// reports may be nil (no side artifact); snap may be nil (no snapshots).
func New(cfg Config, gate *verify.Gate, reports *ReportWriter, snap Snapshotter) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		gate:    gate,
		reports: reports,
		snap:    snap,
		config:  cfg,
		logger:  cfg.Logger.With("component", "validate"),
	}
	p.fetcher = fetch.New(fetch.Config{
		Timeout:      cfg.Timeout,
		URLValidator: p.checkDomain,
	})
	return p
}

// ExtractURLs returns every http(s) URL in text, trailing punctuation
// stripped, deduplicated, first-occurrence order.
func ExtractURLs(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range urlRe.FindAllString(text, -1) {
		u := trailingPunctRe.ReplaceAllString(raw, "")
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Excluded reports whether rawURL's host is on the excluded-domain list
// (exact match or subdomain).
func (p *Pipeline) Excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range p.config.ExcludedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (p *Pipeline) checkDomain(rawURL string) error {
	if p.Excluded(rawURL) {
		return fmt.Errorf("excluded domain")
	}
	return nil
}

// Validate extracts URLs from rawText, fetches and scores each against the
// profile, and returns the formatted output block plus the consolidated
// report. The report is also persisted when a ReportWriter is configured.
func (p *Pipeline) Validate(ctx context.Context, rawText string, profile *annotate.Profile) (string, *Report) {
	report := newReport(profile)
	urls := ExtractURLs(rawText)
	report.TotalExtracted = len(urls)

	var valid []scoredURL
	for _, u := range urls {
		entry := p.checkOne(ctx, u, profile)
		report.URLs = append(report.URLs, entry)
		switch entry.Status {
		case StatusSkipped:
			report.Skipped++
		case StatusValid:
			report.Valid++
			valid = append(valid, scoredURL{
				ValidatedURL: ValidatedURL{
					URL:              entry.FinalURL,
					Title:            entry.Title,
					Score:            entry.Score,
					AnnotationsFound: entry.AnnotationsFound,
				},
			})
		}
	}

	survivors := rank(valid, p.config.MaxURLs)
	report.Survivors = survivors

	if p.reports != nil {
		if err := p.reports.Write(report); err != nil {
			p.logger.Warn("report write failed", "framework", profile.Framework, "error", err)
		}
	}

	return p.format(survivors, profile), report
}

// checkOne runs steps 2-4 for a single URL.
func (p *Pipeline) checkOne(ctx context.Context, u string, profile *annotate.Profile) URLReport {
	entry := URLReport{URL: u}

	if p.Excluded(u) {
		entry.Status = StatusSkipped
		entry.Reason = "excluded domain"
		return entry
	}

	res, err := p.fetcher.Fetch(ctx, u)
	if err != nil {
		entry.Status = StatusInvalid
		entry.Reason = fetchReason(err, res)
		if res != nil {
			entry.HTTPStatus = res.StatusCode
			entry.FinalURL = res.FinalURL
		}
		return entry
	}
	entry.FinalURL = res.FinalURL
	entry.HTTPStatus = res.StatusCode

	page, err := extract.Visible(res.Body)
	if err != nil {
		entry.Status = StatusInvalid
		entry.Reason = truncateErr("parse: " + err.Error())
		return entry
	}
	entry.Title = truncate(strings.TrimSpace(page.Title), p.config.TitleMaxLen)

	relevance, breakdown := score.Relevance(page.Text, page.Title, profile)
	entry.Breakdown = breakdown
	entry.AnnotationsFound = breakdown.AnnotationsFound

	if p.gate != nil {
		gateRes := p.gate.Apply(ctx, relevance, verify.Input{
			URL:         res.FinalURL,
			Title:       page.Title,
			Text:        page.Text,
			Framework:   profile.Framework,
			Topic:       profile.Topic,
			Annotations: profile.Annotations.All,
		})
		if gateRes.Outcome != verify.OutcomeSkipped {
			entry.Gate = &gateRes
		}
		relevance = gateRes.Score
	}
	entry.Score = relevance

	if relevance >= p.config.MinRelevance {
		entry.Status = StatusValid
		if p.snap != nil {
			if err := p.snap.Snapshot(res.FinalURL, page.Title, res.Hash, res.Body, relevance); err != nil {
				p.logger.Warn("snapshot failed", "url", res.FinalURL, "error", err)
			}
		}
	} else {
		entry.Status = StatusInvalid
		entry.Reason = fmt.Sprintf("relevance %.2f below %.2f", relevance, p.config.MinRelevance)
	}
	return entry
}

type scoredURL struct {
	ValidatedURL
}

// rank sorts descending by score (stable, so discovery order breaks ties),
// deduplicates by final URL keeping the first survivor, and truncates.
func rank(urls []scoredURL, maxURLs int) []ValidatedURL {
	sort.SliceStable(urls, func(i, j int) bool { return urls[i].Score > urls[j].Score })

	var out []ValidatedURL
	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u.URL] {
			continue
		}
		seen[u.URL] = true
		out = append(out, u.ValidatedURL)
		if len(out) == maxURLs {
			break
		}
	}
	return out
}

// format renders the output block per surviving URL, or the fixed sentence.
func (p *Pipeline) format(urls []ValidatedURL, profile *annotate.Profile) string {
	if len(urls) == 0 {
		return NoResultsSentence
	}
	total := profile.AnnotationCount
	var sb strings.Builder
	for i, u := range urls {
		fmt.Fprintf(&sb, "%d. %s - %s [%d/%d annos, %.0f%%]\n",
			i+1, u.URL, u.Title, u.AnnotationsFound, total, u.Score*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// fetchReason maps a fetch error to a report reason tag.
func fetchReason(err error, res *fetch.Result) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "Client.Timeout") {
		return "timeout"
	}
	if res != nil && res.StatusCode >= 400 {
		return fmt.Sprintf("http %d", res.StatusCode)
	}
	return truncateErr(err.Error())
}

func truncateErr(s string) string { return truncate(s, 120) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
