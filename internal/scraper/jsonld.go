package scraper

import (
	"encoding/json"
	"strings"
)

// jsonLDDescription returns the description of the first JobPosting found in a
// JSON-LD block, looking through arrays and @graph containers.
func jsonLDDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}
	return findDescription(payload)
}

func findDescription(payload any) string {
	switch t := payload.(type) {
	case map[string]any:
		if isJobPostingType(t["@type"]) {
			if desc := stringField(t["description"]); desc != "" {
				return desc
			}
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				if desc := findDescription(item); desc != "" {
					return desc
				}
			}
		}
	case []any:
		for _, item := range t {
			if desc := findDescription(item); desc != "" {
				return desc
			}
		}
	}
	return ""
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if val, ok := t["@value"]; ok {
			if str, ok2 := val.(string); ok2 {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func isJobPostingType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}
