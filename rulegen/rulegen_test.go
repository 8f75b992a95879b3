package rulegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/metabug/rslgen/genai"
	"github.com/metabug/rslgen/rsl"
	"github.com/metabug/rslgen/rulegen/internal/validate"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubGen answers each pipeline call by recognizing its prompt; fail marks
// name the calls that should error instead.
func stubGen(fail map[string]bool) genai.GeneratorFunc {
	return func(ctx context.Context, instructions, input string) (string, error) {
		switch {
		case strings.Contains(instructions, "=== TASK ==="):
			if fail["rule"] {
				return "", errors.New("rule backend down")
			}
			return `rule R1 { assert(hasAnnotation(c, "@Data")) { msg(, "unused equals"); } }`, nil
		case strings.Contains(instructions, "Provide the following information"):
			if fail["description"] {
				return "", errors.New("description backend down")
			}
			return "Detects classes annotated with @Data whose generated equals is unused.", nil
		case strings.Contains(instructions, "Report any non-existing functions"):
			if fail["nonexistent"] {
				return "", errors.New("check backend down")
			}
			return "None", nil
		case strings.Contains(instructions, `If your answer is "No"`):
			if fail["judge"] {
				return "", errors.New("judge backend down")
			}
			return "Yes.", nil
		case strings.Contains(instructions, "then report any non-existing function names"):
			if fail["fallback_judge"] {
				return "", errors.New("fallback judge down")
			}
			return "Yes.", nil
		}
		return "", fmt.Errorf("unrecognized prompt: %.60s", instructions)
	}
}

func newTestService(t *testing.T, gen genai.Generator, opts ...ServiceOption) *Service {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		AnnotationStorePath: filepath.Join(dir, "annotations.json"),
		ReportDir:           filepath.Join(dir, "url_reports"),
		BuiltinsPath:        filepath.Join(dir, "builtinfs.json"),
		ExamplesDir:         filepath.Join(dir, "rsl_rules"),
		StageDelay:          -1,
		RowDelay:            -1,
		Validate:            validate.Config{Timeout: 2 * time.Second},
	}
	opts = append([]ServiceOption{WithAssets(Assets{
		Builtins: []rsl.Builtin{{
			Name:      "hasAnnotation",
			Purpose:   "checks annotation presence",
			Signature: "hasAnnotation(element, name)",
			Return:    "boolean",
			Category:  "annotation",
		}},
	})}, opts...)

	svc, err := NewService(cfg, gen, discard(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func lombokRecord() Record {
	return Record{
		Framework:   "Lombok",
		Source:      "inspectopedia",
		Topic:       "@Data generates unused equals",
		Description: "Classes annotated with @Data generate equals and hashCode that are never called.",
		Examples:    "@Data\npublic class Point { int x; int y; }",
	}
}

// localFallbackTable builds a curated table whose only entry points at a
// local server, so fallback paths never leave the test process.
func localFallbackTable(t *testing.T, framework, url, title string) *FallbackTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	doc := fmt.Sprintf("%s:\n  - url: %s\n    title: %s\n", framework, url, title)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadFallbackTable(path)
	if err != nil {
		t.Fatalf("LoadFallbackTable: %v", err)
	}
	return table
}

func TestProcessRowAllColumns(t *testing.T) {
	page := `<html><head><title>Lombok @Data guide</title></head><body>
<p>The Lombok @Data annotation generates equals, hashCode and toString.
When the generated equals stays unused, data classes annotated this way
carry dead code that never runs.</p></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Found one page: " + srv.URL + "/guide - official Lombok docs", nil
	})

	svc := newTestService(t, stubGen(nil), WithSearcher(searcher))
	content, stages := svc.ProcessRow(context.Background(), 0, lombokRecord())

	for name, got := range map[string]string{
		"rule":        content.Rule,
		"description": content.Description,
		"web pages":   content.WebPages,
		"nonexistent": content.Nonexistent,
		"verdict":     content.Verdict,
	} {
		if strings.TrimSpace(got) == "" {
			t.Errorf("%s column is empty", name)
		}
	}

	if !strings.Contains(content.WebPages, "1. "+srv.URL+"/guide - Lombok @Data guide [1/1 annos") {
		t.Errorf("web pages = %q, want validated local page", content.WebPages)
	}
	if content.Verdict != "Yes." {
		t.Errorf("verdict = %q, want Yes.", content.Verdict)
	}
	if stages.Failed() {
		t.Error("no stage should have failed")
	}
	for name, sr := range map[string]StageResult{
		"rule":   stages.Rule,
		"search": stages.Search,
		"judge":  stages.Verdict,
	} {
		if sr.Status != StagePrimary {
			t.Errorf("%s stage status = %q, want primary", name, sr.Status)
		}
	}

	// Extraction runs as part of the row.
	if svc.Annotations().Len() != 1 {
		t.Fatalf("annotation store has %d profiles, want 1", svc.Annotations().Len())
	}
	p := svc.Annotations().Get(0)
	if p == nil || len(p.Annotations.All) != 1 || p.Annotations.All[0] != "@Data" {
		t.Errorf("profile annotations = %+v", p)
	}

	// The consolidated report lands in the configured directory.
	names, err := svc.Reports().List()
	if err != nil {
		t.Fatalf("reports list: %v", err)
	}
	if len(names) != 1 || !strings.HasPrefix(names[0], "url_report_Lombok_") {
		t.Errorf("report files = %v", names)
	}
}

func TestProcessRowRuleFailure(t *testing.T) {
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "no pages found", nil
	})
	svc := newTestService(t, stubGen(map[string]bool{"rule": true}), WithSearcher(searcher))

	content, stages := svc.ProcessRow(context.Background(), 0, lombokRecord())

	if stages.Rule.Status != StageFailed {
		t.Errorf("rule status = %q, want failed", stages.Rule.Status)
	}
	if content.Rule != "Error generating rule: rule backend down" {
		t.Errorf("rule output = %q", content.Rule)
	}
	// Downstream stages still run over the degraded output.
	if content.Description == "" || content.Verdict == "" {
		t.Error("downstream stages did not run")
	}
	if !stages.Failed() {
		t.Error("Failed() should report the degraded row")
	}
}

func TestProcessRowSearchFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	table := localFallbackTable(t, "lombok", srv.URL+"/doc", "Local Lombok Doc")
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("search backend down")
	})
	svc := newTestService(t, stubGen(nil), WithSearcher(searcher), WithFallbackTable(table))

	content, stages := svc.ProcessRow(context.Background(), 3, lombokRecord())

	if stages.Search.Status != StageFallback {
		t.Errorf("search status = %q, want fallback", stages.Search.Status)
	}
	want := "1. " + srv.URL + "/doc - Local Lombok Doc"
	if stages.Search.Output != want {
		t.Errorf("search output = %q, want %q", stages.Search.Output, want)
	}
	// The curated URL 404s, so validation yields the fixed sentence.
	if content.WebPages != validate.NoResultsSentence {
		t.Errorf("web pages = %q, want no-results sentence", content.WebPages)
	}
	// Fallback is a successful variant, not a failure.
	if stages.Failed() {
		t.Error("fallback search must not count as failure")
	}
}

func TestProcessRowNilSearcherUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	table := localFallbackTable(t, "lombok", srv.URL+"/doc", "Local Lombok Doc")
	svc := newTestService(t, stubGen(nil), WithFallbackTable(table))

	_, stages := svc.ProcessRow(context.Background(), 0, lombokRecord())
	if stages.Search.Status != StageFallback {
		t.Errorf("search status = %q, want fallback", stages.Search.Status)
	}
}

func TestProcessRowJudgeFallback(t *testing.T) {
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "no pages found", nil
	})
	svc := newTestService(t, stubGen(map[string]bool{"judge": true}), WithSearcher(searcher))

	content, stages := svc.ProcessRow(context.Background(), 0, lombokRecord())

	if stages.Verdict.Status != StageFallback {
		t.Errorf("verdict status = %q, want fallback", stages.Verdict.Status)
	}
	if content.Verdict != "[FBO] Yes." {
		t.Errorf("verdict = %q, want [FBO] Yes.", content.Verdict)
	}
	if stages.Failed() {
		t.Error("fallback verdict must not count as failure")
	}
}

func TestProcessRowJudgeDoubleFailure(t *testing.T) {
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "no pages found", nil
	})
	svc := newTestService(t, stubGen(map[string]bool{"judge": true, "fallback_judge": true}),
		WithSearcher(searcher))

	content, stages := svc.ProcessRow(context.Background(), 0, lombokRecord())

	if stages.Verdict.Status != StageFailed {
		t.Errorf("verdict status = %q, want failed", stages.Verdict.Status)
	}
	if !strings.HasPrefix(content.Verdict, "[FBO] No - fallback evaluation failed:") {
		t.Errorf("verdict = %q", content.Verdict)
	}
	if !stages.Failed() {
		t.Error("double judge failure must mark the row")
	}
}

func TestSearchDropsExcludedLines(t *testing.T) {
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "1. https://www.jetbrains.com/help/idea/lombok.html - IDE help\n" +
			"2. https://projectlombok.org/features/Data - Lombok @Data", nil
	})
	svc := newTestService(t, stubGen(nil), WithSearcher(searcher))

	rec := lombokRecord()
	profile := svc.annotations.ExtractAndStore(0, rec)
	result := svc.search(context.Background(), rec, profile)

	if strings.Contains(result.Output, "jetbrains.com") {
		t.Errorf("excluded domain survived: %q", result.Output)
	}
	if !strings.Contains(result.Output, "projectlombok.org") {
		t.Errorf("legitimate line dropped: %q", result.Output)
	}
}

func TestSaveAnnotations(t *testing.T) {
	searcher := genai.SearcherFunc(func(ctx context.Context, prompt string) (string, error) {
		return "no pages found", nil
	})
	svc := newTestService(t, stubGen(nil), WithSearcher(searcher))

	svc.ProcessRow(context.Background(), 0, lombokRecord())
	if err := svc.SaveAnnotations(); err != nil {
		t.Fatalf("SaveAnnotations: %v", err)
	}
	data, err := os.ReadFile(svc.config.AnnotationStorePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if !strings.Contains(string(data), "@Data") {
		t.Errorf("persisted store misses the annotation: %s", data)
	}
}

func TestNewServiceRequiresGenerator(t *testing.T) {
	if _, err := NewService(nil, nil, discard()); !errors.Is(err, ErrNoGenerator) {
		t.Fatalf("err = %v, want ErrNoGenerator", err)
	}
}
