package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"triage-chatbot/pkg"
)

const (
	// matchCutoff is the minimum similarity ratio for a candidate to confirm
	// the classifier's prediction.
	matchCutoff = 0.4
	// maxMatches bounds both the fuzzy matches and the fallback candidates.
	maxMatches = 3
)

var ordinalPrefix = regexp.MustCompile(`^\s*\d+\.\s+`)

// CleanLabel strips a leading enumeration such as "2. " from a label.
func CleanLabel(label string) string {
	return strings.TrimSpace(ordinalPrefix.ReplaceAllString(label, ""))
}

// SplitCandidates turns the vision model's comma separated answer into
// cleaned labels, dropping empty entries.
func SplitCandidates(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if label := CleanLabel(part); label != "" {
			out = append(out, label)
		}
	}
	return out
}

// Reconcile decides the reported disease from the classifier's prediction
// and the image-derived candidates.  The prediction is kept when there are
// no candidates or when at least one candidate resembles it; otherwise the
// first candidates are reported instead.
func Reconcile(predicted string, candidates []string) pkg.Diagnosis {
	if len(candidates) == 0 {
		return pkg.Single(predicted)
	}

	cleaned := make([]string, len(candidates))
	for i, c := range candidates {
		cleaned[i] = CleanLabel(c)
	}
	if len(closeMatches(CleanLabel(predicted), cleaned, maxMatches, matchCutoff)) > 0 {
		return pkg.Single(predicted)
	}
	if len(cleaned) > maxMatches {
		cleaned = cleaned[:maxMatches]
	}
	return pkg.Candidates(cleaned)
}

type scored struct {
	score float64
	word  string
}

// closeMatches returns up to n possibilities whose similarity ratio to word
// is at least cutoff, best first.
func closeMatches(word string, possibilities []string, n int, cutoff float64) []string {
	m := difflib.NewMatcher(nil, chars(word))
	var hits []scored
	for _, p := range possibilities {
		m.SetSeq1(chars(p))
		if m.RealQuickRatio() >= cutoff && m.QuickRatio() >= cutoff {
			if r := m.Ratio(); r >= cutoff {
				hits = append(hits, scored{score: r, word: p})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.word
	}
	return out
}

func chars(s string) []string {
	return strings.Split(s, "")
}
