// Package annotate extracts structured tokens from inspection rows:
// @-prefixed marker annotations and salient lowercase keywords.
//
// Extraction order is load-bearing: every sequence is deduplicated by first
// occurrence and consumers (candidate building, scoring) truncate to the
// first N entries.
package annotate

import (
	"regexp"
	"strings"
)

// Record is one input row of the inspection corpus.
type Record struct {
	Framework   string `json:"framework"`
	Source      string `json:"source"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Examples    string `json:"examples"`
}

// annotationRe matches @Word and @package.path.Word forms.
var annotationRe = regexp.MustCompile(`@(?:[\w.]+\.)?\w+`)

// wordSplitRe splits on runs of non-word characters.
var wordSplitRe = regexp.MustCompile(`\W+`)

// digitsRe matches pure-digit tokens.
var digitsRe = regexp.MustCompile(`^\d+$`)

// stopWords is the keyword filter: common English function words plus the
// domain noise vocabulary of inspection descriptions.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "can": true, "need": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"with": true, "at": true, "by": true, "from": true, "as": true,
	"into": true, "through": true, "during": true, "before": true,
	"after": true, "above": true, "below": true, "between": true,
	"under": true, "that": true, "which": true, "who": true, "whom": true,
	"this": true, "these": true, "those": true, "reports": true,
	"errors": true, "error": true, "such": true, "inspection": true,
	"check": true, "checks": true, "report": true, "jetbrains": true,
	"issue": true, "problem": true, "detect": true, "detects": true,
}

// ExtractAnnotations returns every @annotation in text, deduplicated,
// first-occurrence order. For a dotted form (@javax.persistence.Entity) the
// short form (@Entity) is synthesized immediately after the full form when
// not already present.
func ExtractAnnotations(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, anno := range annotationRe.FindAllString(text, -1) {
		if !seen[anno] {
			seen[anno] = true
			out = append(out, anno)
		}

		parts := strings.Split(anno, ".")
		short := "@" + strings.TrimPrefix(parts[len(parts)-1], "@")
		if short != anno && !seen[short] {
			seen[short] = true
			out = append(out, short)
		}
	}
	return out
}

// ExtractKeywords returns the lowercase word tokens of text, filtered:
// tokens of length <= 2, pure-digit tokens, and stop-words are discarded.
// Deduplicated, first-occurrence order.
func ExtractKeywords(text string) []string {
	return Tokenize(text, stopWords)
}

// Tokenize applies the shared word tokenization with a caller-supplied
// stop-word set. The relevance scorer reuses it with a shorter list.
func Tokenize(text string, stop map[string]bool) []string {
	if text == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, w := range wordSplitRe.Split(strings.ToLower(text), -1) {
		if w == "" || len(w) <= 2 || stop[w] || digitsRe.MatchString(w) {
			continue
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// mergeUnique concatenates sequences, deduplicating by first occurrence.
func mergeUnique(seqs ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, seq := range seqs {
		for _, s := range seq {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
