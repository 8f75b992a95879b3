package score

import (
	"math"
	"testing"

	"github.com/metabug/rslgen/rulegen/internal/annotate"
)

func jpaProfile() *annotate.Profile {
	return annotate.NewProfile(0, annotate.Record{
		Framework: "JPA",
		Topic:     "@Entity mapping",
	})
}

func TestRelevance_FullMatchClampsToOne(t *testing.T) {
	// WHAT: annotation + framework + keywords + both title bonuses push
	// earned past total; the score clamps at 1.
	text := "The @Entity annotation in JPA controls mapping of persistent classes."
	title := "JPA @Entity mapping guide"

	got, b := Relevance(text, title, jpaProfile())
	if got != 1 {
		t.Fatalf("score: got %v", got)
	}
	if b.AnnotationsFound != 1 || b.FrameworkTier != "full" {
		t.Errorf("breakdown: %+v", b)
	}
	if !b.TitleFramework || len(b.TitleAnnotations) != 1 {
		t.Errorf("title bonuses: %+v", b)
	}
}

func TestRelevance_NoMatch(t *testing.T) {
	got, b := Relevance("completely unrelated cooking recipes", "Pancakes", jpaProfile())
	if got != 0 {
		t.Fatalf("score: got %v", got)
	}
	if b.EarnedWeight != 0 {
		t.Errorf("earned: got %v", b.EarnedWeight)
	}
	// total = 4.0 (one annotation) + 3.0 (framework) + 2*1.5 (entity, mapping)
	if b.TotalWeight != 10 {
		t.Errorf("total: got %v", b.TotalWeight)
	}
}

func TestRelevance_FrameworkPartialCredit(t *testing.T) {
	// WHAT: a single framework word >2 chars in text earns the 60% tier.
	p := &annotate.Profile{Framework: "Spring Boot"}
	got, b := Relevance("getting started with boot applications", "", p)
	if b.FrameworkTier != "partial" {
		t.Fatalf("tier: got %q", b.FrameworkTier)
	}
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("score: got %v want 0.6", got)
	}
}

func TestRelevance_AnnotationWithoutMarker(t *testing.T) {
	// WHAT: the bare identifier (no @) in text still counts as found.
	p := &annotate.Profile{
		Framework:   "JPA",
		Annotations: annotate.Annotations{All: []string{"@Entity"}},
	}
	_, b := Relevance("the entity annotation in jpa", "", p)
	if !b.Annotations[0].Found {
		t.Fatalf("annotation not found: %+v", b.Annotations[0])
	}
	if b.Annotations[0].Locations[0] != "text_no_marker" {
		t.Errorf("location: got %v", b.Annotations[0].Locations)
	}
}

func TestRelevance_TopicKeywordCap(t *testing.T) {
	// WHAT: only the first 6 topic keywords contribute weight.
	p := &annotate.Profile{
		Topic: "alpha bravo charlie delta echo foxtrot golf hotel",
	}
	_, b := Relevance("", "", p)
	if len(b.Keywords) != 6 {
		t.Fatalf("keywords: got %d", len(b.Keywords))
	}
	if b.TotalWeight != 9 {
		t.Errorf("total: got %v", b.TotalWeight)
	}
}

func TestRelevance_TitleAnnotationBonusCap(t *testing.T) {
	p := &annotate.Profile{
		Annotations: annotate.Annotations{All: []string{"@A1x", "@B2x", "@C3x"}},
	}
	text := "a1x b2x c3x"
	title := "a1x b2x c3x reference"
	_, b := Relevance(text, title, p)
	if len(b.TitleAnnotations) != 2 {
		t.Errorf("title annotations: got %v", b.TitleAnnotations)
	}
}

func TestRelevance_EmptyProfile(t *testing.T) {
	// WHAT: nothing to weigh; denominator floors at 1 so the score is 0.
	got, b := Relevance("some text", "some title", &annotate.Profile{})
	if got != 0 || b.TotalWeight != 0 {
		t.Errorf("got %v total %v", got, b.TotalWeight)
	}
}
