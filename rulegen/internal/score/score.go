// Package score computes the deterministic relevance of a fetched page for
// one inspection row.
//
// Annotation presence carries the highest per-item weight: exact API marker
// names rarely appear on off-topic pages. Title matches are percentage
// nudges on top of the accumulated weight so a title alone cannot dominate.
package score

import (
	"math"
	"strings"

	"github.com/metabug/rslgen/rulegen/internal/annotate"
)

const (
	annotationWeight      = 4.0
	frameworkWeight       = 3.0
	frameworkPartialRatio = 0.6
	keywordWeight         = 1.5
	maxTopicKeywords      = 6

	titleFrameworkBonus  = 0.20
	titleAnnotationBonus = 0.15
	maxTitleAnnotations  = 2
	titleAnnotationScan  = 5
)

// topicStopWords is shorter than the extraction stop list: topic cells are
// already terse, so only the most generic words are dropped.
var topicStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "in": true,
	"of": true, "to": true, "for": true, "on": true, "with": true,
	"that": true, "this": true, "be": true, "as": true, "by": true,
	"or": true, "and": true, "use": true, "using": true, "used": true,
	"reports": true, "error": true, "errors": true, "incorrect": true,
}

// AnnotationMatch records whether one annotation was found and where.
type AnnotationMatch struct {
	Annotation string   `json:"annotation"`
	Found      bool     `json:"found"`
	Locations  []string `json:"locations,omitempty"`
}

// KeywordMatch records whether one topic keyword was found in page text.
type KeywordMatch struct {
	Keyword string `json:"keyword"`
	Found   bool   `json:"found"`
}

// Breakdown explains how a score was assembled. It is embedded in the
// per-row validation report.
type Breakdown struct {
	Annotations   []AnnotationMatch `json:"annotations"`
	FrameworkTier string            `json:"framework_tier"`
	Keywords      []KeywordMatch    `json:"keywords"`

	TitleFramework   bool     `json:"title_framework_bonus"`
	TitleAnnotations []string `json:"title_annotation_bonuses,omitempty"`

	TotalWeight  float64 `json:"total_weight"`
	EarnedWeight float64 `json:"earned_weight"`
	Score        float64 `json:"score"`

	AnnotationsChecked int `json:"annotations_checked"`
	AnnotationsFound   int `json:"annotations_found"`
}

// Relevance scores a page against a profile. The result is in [0,1]:
// earned weight over total weight, plus title bonuses, clamped.
func Relevance(pageText, pageTitle string, p *annotate.Profile) (float64, *Breakdown) {
	text := strings.ToLower(pageText)
	title := strings.ToLower(pageTitle)

	b := &Breakdown{FrameworkTier: "none"}
	var total, earned float64

	for _, anno := range p.Annotations.All {
		total += annotationWeight
		m := AnnotationMatch{Annotation: anno}

		lower := strings.ToLower(anno)
		bare := strings.TrimPrefix(lower, "@")
		if strings.Contains(text, lower) {
			m.Locations = append(m.Locations, "text")
		} else if strings.Contains(text, bare) {
			m.Locations = append(m.Locations, "text_no_marker")
		}
		if strings.Contains(title, lower) || strings.Contains(title, bare) {
			m.Locations = append(m.Locations, "title")
		}
		if len(m.Locations) > 0 {
			m.Found = true
			earned += annotationWeight
			b.AnnotationsFound++
		}
		b.Annotations = append(b.Annotations, m)
	}
	b.AnnotationsChecked = len(p.Annotations.All)

	framework := strings.ToLower(strings.TrimSpace(p.Framework))
	if framework != "" {
		total += frameworkWeight
		switch {
		case strings.Contains(text, framework):
			earned += frameworkWeight
			b.FrameworkTier = "full"
		case frameworkWordInText(framework, text):
			earned += frameworkWeight * frameworkPartialRatio
			b.FrameworkTier = "partial"
		}
	}

	keywords := annotate.Tokenize(p.Topic, topicStopWords)
	if len(keywords) > maxTopicKeywords {
		keywords = keywords[:maxTopicKeywords]
	}
	for _, kw := range keywords {
		total += keywordWeight
		m := KeywordMatch{Keyword: kw}
		if strings.Contains(text, kw) {
			m.Found = true
			earned += keywordWeight
		}
		b.Keywords = append(b.Keywords, m)
	}

	// Title bonuses are percentages of the full total, applied after all
	// base weights are in. They raise earned only.
	if framework != "" && strings.Contains(title, framework) {
		earned += titleFrameworkBonus * total
		b.TitleFramework = true
	}
	scan := p.Annotations.All
	if len(scan) > titleAnnotationScan {
		scan = scan[:titleAnnotationScan]
	}
	for _, anno := range scan {
		if len(b.TitleAnnotations) >= maxTitleAnnotations {
			break
		}
		lower := strings.ToLower(anno)
		if strings.Contains(title, lower) || strings.Contains(title, strings.TrimPrefix(lower, "@")) {
			earned += titleAnnotationBonus * total
			b.TitleAnnotations = append(b.TitleAnnotations, anno)
		}
	}

	score := earned / math.Max(total, 1)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	b.TotalWeight = total
	b.EarnedWeight = earned
	b.Score = math.Round(score*1000) / 1000
	return score, b
}

// frameworkWordInText reports whether any individual framework word longer
// than 2 characters appears in text.
func frameworkWordInText(framework, text string) bool {
	for _, w := range strings.Fields(framework) {
		if len(w) > 2 && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
