package urlutil

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

var ErrNoHost = errors.New("url has no host")

// trackingParams are dropped from job links before they are used as keys.
// Compared lower-cased.
var trackingParams = map[string]struct{}{
	"gclid":             {},
	"fbclid":            {},
	"ref":               {},
	"source":            {},
	"refid":             {},
	"trackingid":        {},
	"trk":               {},
	"position":          {},
	"pagenum":           {},
	"originalsubdomain": {},
}

// countryHosts are served under two-letter country subdomains (il.linkedin.com)
// that all point at the same posting.
var countryHosts = []string{
	"linkedin.com",
}

// Normalize canonicalises a link: https scheme, lower-case host without www,
// clean path, no fragment and no tracking parameters.
func Normalize(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("empty url")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		// "example.com/jobs/1" parses as a path
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", "", err
		}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = normalizeHost(u.Host)
	if u.Host == "" {
		return "", "", ErrNoHost
	}
	u.Path = normalizePath(u.Path)
	u.RawPath = ""
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

// JobKey derives the deduplication key of a listing from its link.
func JobKey(link string) (string, error) {
	normalized, _, err := Normalize(link)
	if err != nil {
		return "", err
	}
	return normalized, nil
}

// Resolve resolves href against base and rejects non-http links.
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	for _, h := range countryHosts {
		if !strings.HasSuffix(host, "."+h) {
			continue
		}
		sub := strings.TrimSuffix(host, "."+h)
		if len(sub) == 2 && isAlpha(sub) {
			return h
		}
	}
	return host
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	if clean != "/" && strings.HasSuffix(clean, "/") {
		clean = strings.TrimSuffix(clean, "/")
	}
	return clean
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") {
			delete(values, key)
			continue
		}
		if _, ok := trackingParams[lk]; ok {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := url.Values{}
	for _, k := range keys {
		normalized[k] = values[k]
	}
	return normalized.Encode()
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
