// Package strings provides secret redaction helpers for logging
package strings

import (
	"net/url"
	std "strings"
)

// redacted replaces secret material in logs
const redacted = "***"

// Redact hides all but the last four runes of s; short values are hidden entirely
func Redact(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		if len(r) == 0 {
			return ""
		}
		return redacted
	}
	return redacted + string(r[len(r)-4:])
}

// RedactQuery returns rawURL with the values of the given query keys replaced
// The rest of the URL is left as written; unparseable input is fully redacted
func RedactQuery(rawURL string, keys ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return redacted
	}
	if u.RawQuery == "" {
		return rawURL
	}
	parts := std.Split(u.RawQuery, "&")
	for i, p := range parts {
		k, _, found := std.Cut(p, "=")
		if !found {
			continue
		}
		name, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		for _, want := range keys {
			if name == want {
				parts[i] = k + "=" + redacted
				break
			}
		}
	}
	u.RawQuery = std.Join(parts, "&")
	return u.String()
}
