package api

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/baxromumarov/job-collector/internal/model"
)

// fold lower-cases s and strips diacritics, so "Zürich" matches "zurich".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// filterRecords keeps records whose title, company or location contain every
// word of query.
func filterRecords(records []model.JobRecord, query string) []model.JobRecord {
	terms := strings.Fields(fold(query))
	if len(terms) == 0 {
		return records
	}
	out := make([]model.JobRecord, 0, len(records))
	for _, r := range records {
		blob := fold(strings.Join([]string{r.Title, r.Company, r.Location}, " "))
		matched := true
		for _, term := range terms {
			if !strings.Contains(blob, term) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, r)
		}
	}
	return out
}

// newestFirst reverses insertion order.
func newestFirst(records []model.JobRecord) []model.JobRecord {
	out := make([]model.JobRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}
