package reputation

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// Normalize turns a raw URL or user-supplied string into the lower-case host
// key shared by the cache, the store and the external clients. Input that does
// not look like a URL comes back lower-cased and otherwise unchanged.
func Normalize(raw string) string {
	domain := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(domain, "http://"):
		domain = domain[len("http://"):]
	case strings.HasPrefix(domain, "https://"):
		domain = domain[len("https://"):]
	}
	domain = strings.TrimPrefix(domain, "www.")

	if end := strings.IndexAny(domain, "/?#"); end > 0 {
		domain = domain[:end]
	}

	return domain
}

// ExtractURLs returns every http(s) URL in text, in order of appearance.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}
	return urlPattern.FindAllString(text, -1)
}
