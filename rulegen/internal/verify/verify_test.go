package verify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/metabug/rslgen/genai"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestApply_SkipsOutsideBand(t *testing.T) {
	// WHAT: scores outside [0.25, 0.55] never reach the verifier.
	called := false
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		called = true
		return `{"is_relevant": true}`, nil
	})
	g := NewGate(gen, discard())

	for _, score := range []float64{0.0, 0.24, 0.56, 0.9, 1.0} {
		res := g.Apply(context.Background(), score, Input{})
		if res.Outcome != OutcomeSkipped || res.Score != score {
			t.Errorf("score %v: got %+v", score, res)
		}
	}
	if called {
		t.Error("verifier called outside band")
	}
}

func TestApply_BandBoundariesIncluded(t *testing.T) {
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		return `{"is_relevant": true, "confidence": 0.9}`, nil
	})
	g := NewGate(gen, discard())

	for _, score := range []float64{0.25, 0.55} {
		res := g.Apply(context.Background(), score, Input{})
		if res.Outcome != OutcomeConfirmed {
			t.Errorf("score %v: got %+v", score, res)
		}
		if res.Score != 0.60 {
			t.Errorf("score %v: raised to %v want 0.60", score, res.Score)
		}
	}
}

func TestApply_RejectedLowersScore(t *testing.T) {
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		return "```json\n{\"is_relevant\": false, \"reason\": \"off topic\"}\n```", nil
	})
	g := NewGate(gen, discard())

	res := g.Apply(context.Background(), 0.50, Input{})
	if res.Outcome != OutcomeRejected {
		t.Fatalf("got %+v", res)
	}
	if res.Score != 0.25 {
		t.Errorf("score: got %v want 0.25", res.Score)
	}
	if res.Verdict == nil || res.Verdict.Reason != "off topic" {
		t.Errorf("verdict: %+v", res.Verdict)
	}
}

func TestApply_FailureKeepsDeterministicScore(t *testing.T) {
	// WHAT: a failing call degrades to the deterministic score, neither
	// raising nor lowering it.
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		return "", errors.New("provider down")
	})
	g := NewGate(gen, discard())

	res := g.Apply(context.Background(), 0.40, Input{})
	if res.Outcome != OutcomeDegraded || res.Score != 0.40 {
		t.Errorf("got %+v", res)
	}
}

func TestApply_MalformedResponseDegrades(t *testing.T) {
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		return "probably relevant I guess", nil
	})
	g := NewGate(gen, discard())

	res := g.Apply(context.Background(), 0.30, Input{})
	if res.Outcome != OutcomeDegraded || res.Score != 0.30 {
		t.Errorf("got %+v", res)
	}
}

func TestApply_TruncatesPageText(t *testing.T) {
	var gotInput string
	gen := genai.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		gotInput = input
		return `{"is_relevant": false}`, nil
	})
	g := NewGate(gen, discard())

	long := strings.Repeat("x", 5000)
	g.Apply(context.Background(), 0.40, Input{URL: "https://example.com", Text: long})

	// Count only inside the page-text section; the prompt header contributes
	// its own characters.
	_, snippet, ok := strings.Cut(gotInput, "Page text (truncated):\n")
	if !ok {
		t.Fatalf("prompt misses the page-text section: %q", gotInput)
	}
	if n := strings.Count(snippet, "x"); n != 1500 {
		t.Errorf("snippet length: got %d", n)
	}
}

func TestApply_NilGenerator(t *testing.T) {
	g := NewGate(nil, discard())
	res := g.Apply(context.Background(), 0.40, Input{})
	if res.Outcome != OutcomeDegraded || res.Score != 0.40 {
		t.Errorf("got %+v", res)
	}
}
