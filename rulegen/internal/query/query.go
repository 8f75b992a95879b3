// Package query turns an annotation profile into an ordered list of search
// candidates. Order matters: consumers truncate to the first N, so the
// highest-signal combinations (annotation plus tight keyword context) come
// first.
package query

import (
	"strings"

	"github.com/metabug/rslgen/rulegen/internal/annotate"
)

// Candidates builds the search-candidate list for a profile:
//
//  1. per annotation: "{annotation} AND {first 2 keywords}"
//  2. "{first 4 keywords}" alone
//  3. per annotation: "{annotation} {first 4 keywords}"
//
// Keywords follow the profile's priority order (framework, topic,
// description). With no annotations and no keywords, falls back to
// "{framework} {topic}".
func Candidates(p *annotate.Profile) []string {
	keywords := p.OrderedKeywords()
	k2 := strings.Join(head(keywords, 2), " ")
	k4 := strings.Join(head(keywords, 4), " ")

	var out []string
	for _, anno := range p.Annotations.All {
		if k2 == "" {
			out = append(out, anno)
		} else {
			out = append(out, anno+" AND "+k2)
		}
	}
	if k4 != "" {
		out = append(out, k4)
	}
	for _, anno := range p.Annotations.All {
		if k4 != "" {
			out = append(out, anno+" "+k4)
		}
	}

	if len(out) == 0 {
		if fb := strings.TrimSpace(p.Framework + " " + p.Topic); fb != "" {
			out = append(out, fb)
		}
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
