// Package convert holds the small, pure JSON <-> domain conversions the rest
// of the system depends on: URL normalization, the http<->ws scheme
// derivation, and !!env: secret expansion (spec §4.9, §6).
package convert

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeAPIURL parses raw as an absolute http(s) URL and strips its
// query, fragment and userinfo, returning the canonical base URL string
// (no trailing slash).
func NormalizeAPIURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing api url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("api url %q: scheme must be http or https, got %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api url %q: missing host", raw)
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// WebSocketURL derives the log-stream WebSocket URL from a normalized API
// base URL: ws:// for http, wss:// for https (spec §4.9).
func WebSocketURL(apiBaseURL string) (string, error) {
	u, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing api url %q: %w", apiBaseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api url %q: scheme must be http or https, got %q", apiBaseURL, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/logs"
	return u.String(), nil
}
