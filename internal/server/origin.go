package server

import (
	"net/http"
	"net/url"
	"strings"
)

// normalizeOrigins lowercases and canonicalizes the configured origins,
// dropping entries that do not parse. A bare "*" allows every origin.
func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		canonical, ok := normalizeOrigin(trimmed)
		if !ok {
			continue
		}
		normalized = append(normalized, canonical)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// originAllowed checks the request's Origin header against the configured
// allow-list. Requests without an Origin header are rejected.
func (c *Config) originAllowed(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}
	canonical, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if c.allowAllOrigins {
		return true
	}
	_, exists := c.originSet[canonical]
	return exists
}
