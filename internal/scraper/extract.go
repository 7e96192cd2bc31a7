package scraper

import (
	"regexp"
	"strings"
)

const hintWindow = 50

type degreePattern struct {
	label string
	rank  int
	re    *regexp.Regexp
}

var degreePatterns = []degreePattern{
	{label: "Bachelor", rank: 0, re: regexp.MustCompile(`(?i)\b(b\.?\s*sc|b\.?\s*s\.?|b\.?\s*a\.?|bachelor'?s?)\b`)},
	{label: "Master", rank: 1, re: regexp.MustCompile(`(?i)\b(m\.?\s*sc|m\.?\s*s\.?|master'?s?)\b`)},
	{label: "PhD", rank: 2, re: regexp.MustCompile(`(?i)\b(ph\.?\s*d\.?|doctorate|doctoral)\b`)},
}

var (
	requiredHints  = []string{"require", "required", "must", "minimum", "at least", "need", "looking for"}
	preferredHints = []string{"prefer", "preferred", "advantage", "nice to have", "plus", "bonus"}
)

var (
	yearsRangeRe    = regexp.MustCompile(`(?i)(?P<min>\d{1,2})\s*(?:-|to)\s*(?P<max>\d{1,2})\s*(?:years?|yrs?)`)
	yearsExpRe      = regexp.MustCompile(`(?i)(?P<years>\d{1,2})(?P<plus>\s*\+)?\s*(?:years?|yrs?)\s+of\s+experience`)
	yearsFallbackRe = regexp.MustCompile(`(?i)(?:at\s+least\s+|minimum\s+of\s+)?(?P<years>\d{1,2})(?P<plus>\s*\+)?\s*(?:years?|yrs?)`)
)

type degreeCategory int

const (
	categoryRequired degreeCategory = iota
	categoryNeutral
	categoryPreferred
)

// ExtractDegree returns the minimum degree a description asks for, or "" when none
// is mentioned. Mentions near a requirement hint win over neutral ones, which win
// over mentions that are only preferred.
func ExtractDegree(text string) string {
	lower := strings.ToLower(text)

	best := map[degreeCategory]degreePattern{}
	for _, p := range degreePatterns {
		for _, loc := range p.re.FindAllStringIndex(lower, -1) {
			cat := classifyWindow(lower, loc[0], loc[1])
			if cur, ok := best[cat]; !ok || p.rank < cur.rank {
				best[cat] = p
			}
		}
	}
	for _, cat := range []degreeCategory{categoryRequired, categoryNeutral, categoryPreferred} {
		if p, ok := best[cat]; ok {
			return p.label
		}
	}
	return ""
}

func classifyWindow(lower string, start, end int) degreeCategory {
	from := max(0, start-hintWindow)
	to := min(len(lower), end+hintWindow)
	window := lower[from:to]

	if containsAny(window, requiredHints) {
		return categoryRequired
	}
	if containsAny(window, preferredHints) {
		return categoryPreferred
	}
	return categoryNeutral
}

// ExtractYears returns the minimum years of experience as "N years", or "".
// Ranges report their lower bound.
func ExtractYears(text string) string {
	if m := yearsRangeRe.FindStringSubmatch(text); m != nil {
		return m[yearsRangeRe.SubexpIndex("min")] + " years"
	}
	if m := yearsExpRe.FindStringSubmatch(text); m != nil {
		return m[yearsExpRe.SubexpIndex("years")] + " years"
	}
	if m := yearsFallbackRe.FindStringSubmatch(text); m != nil {
		return m[yearsFallbackRe.SubexpIndex("years")] + " years"
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
