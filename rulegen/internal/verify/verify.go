// Package verify implements the borderline gate: pages whose deterministic
// relevance lands in an ambiguous band get one semantic check by an
// external model before the score is finalized. Scores outside the band
// never trigger a call, keeping model cost proportional to ambiguity.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/metabug/rslgen/genai"
)

const (
	// BandLow and BandHigh bound the closed score band that triggers a
	// verifier call.
	BandLow  = 0.25
	BandHigh = 0.55

	// RelevantFloor is the minimum score after a confirming verdict.
	RelevantFloor = 0.60
	// RejectedCeiling is the maximum score after a rejecting verdict.
	RejectedCeiling = 0.25

	// snippetLen caps the page text passed to the verifier.
	snippetLen = 1500
)

// Outcome describes what the gate did with a score.
type Outcome string

const (
	// OutcomeSkipped means the score was outside the band; no call made.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeConfirmed means the verifier judged the page relevant.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRejected means the verifier judged the page not relevant.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDegraded means the call failed; the deterministic score stands.
	OutcomeDegraded Outcome = "degraded"
)

// Input is what the verifier sees about one candidate page.
type Input struct {
	URL         string
	Title       string
	Text        string
	Framework   string
	Topic       string
	Annotations []string
}

// Verdict is the parsed verifier response.
type Verdict struct {
	Relevant             bool     `json:"is_relevant"`
	Confidence           float64  `json:"confidence"`
	Reason               string   `json:"reason"`
	AnnotationsDiscussed []string `json:"annotations_discussed"`
}

// Result reports the gate decision for one page.
type Result struct {
	Outcome Outcome  `json:"outcome"`
	Score   float64  `json:"score"`
	Verdict *Verdict `json:"verdict,omitempty"`
}

// Gate applies the borderline check using a generation collaborator.
type Gate struct {
	gen    genai.Generator
	logger *slog.Logger
}

// NewGate creates a Gate. A nil generator disables verification: every
// borderline score degrades to the deterministic value.
func NewGate(gen genai.Generator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{gen: gen, logger: logger.With("component", "verify")}
}

const instructions = `You judge whether a web page genuinely discusses a given framework topic and its code annotations. Respond with ONLY a JSON object:
{"is_relevant": true|false, "confidence": 0.0-1.0, "reason": "one sentence", "annotations_discussed": ["@..."]}`

// Apply returns the final score for a page. Scores outside the closed band
// [BandLow, BandHigh] pass through untouched. Inside the band the verifier
// is consulted once; a confirming verdict raises the score to at least
// RelevantFloor, a rejecting one lowers it to at most RejectedCeiling, and
// any call or parse failure leaves the deterministic score unchanged.
func (g *Gate) Apply(ctx context.Context, score float64, in Input) Result {
	if score < BandLow || score > BandHigh {
		return Result{Outcome: OutcomeSkipped, Score: score}
	}
	if g.gen == nil {
		return Result{Outcome: OutcomeDegraded, Score: score}
	}

	verdict, err := g.call(ctx, in)
	if err != nil {
		g.logger.Warn("verifier call failed, keeping deterministic score",
			"url", in.URL, "score", score, "error", err)
		return Result{Outcome: OutcomeDegraded, Score: score}
	}

	if verdict.Relevant {
		if score < RelevantFloor {
			score = RelevantFloor
		}
		return Result{Outcome: OutcomeConfirmed, Score: score, Verdict: verdict}
	}
	if score > RejectedCeiling {
		score = RejectedCeiling
	}
	return Result{Outcome: OutcomeRejected, Score: score, Verdict: verdict}
}

func (g *Gate) call(ctx context.Context, in Input) (*Verdict, error) {
	text := in.Text
	if len(text) > snippetLen {
		text = text[:snippetLen]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\nTitle: %s\nFramework: %s\nTopic: %s\nAnnotations: %s\n\nPage text (truncated):\n%s\n",
		in.URL, in.Title, in.Framework, in.Topic, strings.Join(in.Annotations, ", "), text)

	raw, err := g.gen.Generate(ctx, instructions, sb.String())
	if err != nil {
		return nil, err
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdict); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}
	return &verdict, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
