package helpers

import (
	"net/url"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
}

// CleanResultURL validates a search-result link and strips its fragment and
// tracking parameters. Only absolute http(s) URLs are accepted.
func CleanResultURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), true
}

// UniqueURLs cleans links, drops invalid ones and removes duplicates while
// preserving order, stopping once limit links are collected (limit <= 0 means all).
func UniqueURLs(links []string, limit int) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		clean, ok := CleanResultURL(l)
		if !ok {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
