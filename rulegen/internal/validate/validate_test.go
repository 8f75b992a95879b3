package validate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/metabug/rslgen/rulegen/internal/annotate"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func jpaProfile() *annotate.Profile {
	return annotate.NewProfile(0, annotate.Record{
		Framework: "JPA",
		Topic:     "@Entity mapping",
	})
}

func page(title, body string) string {
	return fmt.Sprintf("<html><head><title>%s</title></head><body><p>%s</p></body></html>", title, body)
}

func TestExtractURLs(t *testing.T) {
	text := `See https://example.com/docs. Also (https://other.example/page), and
"https://quoted.example/x" plus https://example.com/docs again.`
	got := ExtractURLs(text)
	want := []string{
		"https://example.com/docs",
		"https://other.example/page",
		"https://quoted.example/x",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestExcluded_HostSuffix(t *testing.T) {
	p := New(Config{Logger: discard()}, nil, nil, nil)
	cases := map[string]bool{
		"https://www.jetbrains.com/help/idea/":  true,
		"https://youtrack.jetbrains.com/issue/": true,
		"https://plugins.jetbrains.com/x":       true,
		"https://jetbrains.com.evil.example/":   false,
		"https://baeldung.com/jpa-entity":       false,
	}
	for u, want := range cases {
		if got := p.Excluded(u); got != want {
			t.Errorf("%s: got %v want %v", u, got, want)
		}
	}
}

func TestValidate_ExcludedNeverScored(t *testing.T) {
	// WHAT: an excluded-domain URL appears in the report only as skipped,
	// regardless of content; no fetch happens.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("JPA @Entity mapping", "JPA @Entity mapping everywhere")))
	}))
	defer srv.Close()

	p := New(Config{Logger: discard()}, nil, nil, nil)
	raw := "https://www.jetbrains.com/help and " + srv.URL + "/good"
	out, report := p.Validate(context.Background(), raw, jpaProfile())

	if report.Skipped != 1 || report.Valid != 1 {
		t.Fatalf("counts: %+v", report)
	}
	if report.URLs[0].Status != StatusSkipped || report.URLs[0].Score != 0 {
		t.Errorf("excluded entry: %+v", report.URLs[0])
	}
	if strings.Contains(out, "jetbrains") {
		t.Errorf("excluded URL leaked into output: %q", out)
	}
}

func TestValidate_RankAndTruncate(t *testing.T) {
	// WHAT: survivors are sorted descending by score and truncated to
	// MaxURLs, stable on ties.
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/full", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("JPA @Entity mapping guide", "JPA @Entity mapping in depth")))
	})
	mux.HandleFunc("/half", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("Persistence notes", "jpa mapping basics")))
	})
	mux.HandleFunc("/weak", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("Java notes", "jpa only here")))
	})

	p := New(Config{MaxURLs: 2, Logger: discard()}, nil, nil, nil)
	raw := fmt.Sprintf("%s/weak %s/full %s/half", srv.URL, srv.URL, srv.URL)
	out, report := p.Validate(context.Background(), raw, jpaProfile())

	if len(report.Survivors) != 2 {
		t.Fatalf("survivors: %+v", report.Survivors)
	}
	if !strings.HasSuffix(report.Survivors[0].URL, "/full") {
		t.Errorf("first survivor: %+v", report.Survivors[0])
	}
	if !strings.HasSuffix(report.Survivors[1].URL, "/half") {
		t.Errorf("second survivor: %+v", report.Survivors[1])
	}
	if !strings.HasPrefix(out, "1. "+srv.URL+"/full - JPA @Entity mapping guide [1/1 annos, 100%]") {
		t.Errorf("output format:\n%s", out)
	}
	if !strings.Contains(out, "2. "+srv.URL+"/half") {
		t.Errorf("missing second line:\n%s", out)
	}
}

func TestValidate_DedupeByFinalURL(t *testing.T) {
	// WHAT: two input URLs redirecting to the same page survive once.
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("JPA @Entity mapping", "JPA @Entity mapping text")))
	})

	p := New(Config{Logger: discard()}, nil, nil, nil)
	_, report := p.Validate(context.Background(), srv.URL+"/a "+srv.URL+"/b", jpaProfile())

	if report.Valid != 2 {
		t.Fatalf("valid count: %d", report.Valid)
	}
	if len(report.Survivors) != 1 {
		t.Fatalf("survivors: %+v", report.Survivors)
	}
	if !strings.HasSuffix(report.Survivors[0].URL, "/final") {
		t.Errorf("survivor url: %q", report.Survivors[0].URL)
	}
}

func TestValidate_TimeoutRecovery(t *testing.T) {
	// WHAT: a timeout on the only candidate yields the fixed sentence and
	// a timeout-tagged report entry; the pipeline does not fail.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	p := New(Config{Timeout: 100 * time.Millisecond, Logger: discard()}, nil, nil, nil)
	out, report := p.Validate(context.Background(), srv.URL+"/slow", jpaProfile())

	if out != NoResultsSentence {
		t.Errorf("output: got %q", out)
	}
	if len(report.URLs) != 1 || report.URLs[0].Reason != "timeout" {
		t.Errorf("report: %+v", report.URLs)
	}
}

func TestValidate_HTTPStatusRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := New(Config{Logger: discard()}, nil, nil, nil)
	_, report := p.Validate(context.Background(), srv.URL+"/gone", jpaProfile())

	if report.URLs[0].Status != StatusInvalid || report.URLs[0].Reason != "http 404" {
		t.Errorf("entry: %+v", report.URLs[0])
	}
}

func TestValidate_BelowThresholdInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("Cooking", "pancake recipes")))
	}))
	defer srv.Close()

	p := New(Config{Logger: discard()}, nil, nil, nil)
	out, report := p.Validate(context.Background(), srv.URL, jpaProfile())

	if out != NoResultsSentence {
		t.Errorf("output: got %q", out)
	}
	if report.URLs[0].Status != StatusInvalid {
		t.Errorf("entry: %+v", report.URLs[0])
	}
}

func TestValidate_WritesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page("JPA @Entity mapping", "JPA @Entity mapping text")))
	}))
	defer srv.Close()

	dir := t.TempDir()
	w := NewReportWriter(dir)
	p := New(Config{Logger: discard()}, nil, w, nil)
	_, report := p.Validate(context.Background(), srv.URL, jpaProfile())

	path := filepath.Join(dir, report.Filename())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file: %v", err)
	}

	loaded, err := w.Read(report.Filename())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Framework != "JPA" || loaded.Valid != 1 {
		t.Errorf("loaded: %+v", loaded)
	}
}

func TestReportFilename_Sanitized(t *testing.T) {
	r := &Report{
		Framework: "Spring Boot / WebFlux",
		Topic:     "@Bean misuse: very long topic text that keeps going well past the cap",
	}
	name := r.Filename()
	if strings.ContainsAny(name, "/: @") {
		t.Errorf("unsafe chars in %q", name)
	}
	if !strings.HasPrefix(name, "url_report_Spring_Boot___WebFlux_") {
		t.Errorf("got %q", name)
	}
	// framework capped at 30, topic at 50
	if len(name) > len("url_report_")+30+1+50+len(".json") {
		t.Errorf("name too long: %q", name)
	}
}

func TestReportWriter_ReadRejectsTraversal(t *testing.T) {
	w := NewReportWriter(t.TempDir())
	if _, err := w.Read("../etc/passwd"); err == nil {
		t.Fatal("expected error")
	}
}
