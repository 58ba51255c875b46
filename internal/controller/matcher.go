package controller

import (
	"fmt"
	"regexp"
	"strings"
)

// PlayerMatcher resolves a "group" (spec §4.6's send-message-to-group /
// get-players-in-group helpers) as a named subset of connected players
// selected by name: an exact match, a `/regex/` pattern, or (the default) a
// name prefix.
type PlayerMatcher struct {
	selector string
	exact    bool
	pattern  *regexp.Regexp
}

// NewPlayerMatcher builds a PlayerMatcher. A selector wrapped in slashes
// (`/.../  `) is compiled as a regular expression; otherwise it is either an
// exact name or a name prefix depending on exact.
func NewPlayerMatcher(selector string, exact bool) (*PlayerMatcher, error) {
	if strings.HasPrefix(selector, "/") && strings.HasSuffix(selector, "/") && len(selector) >= 2 {
		if exact {
			return nil, fmt.Errorf("controller: exact match requires a plain string selector, got regex %q", selector)
		}
		body := selector[1 : len(selector)-1]
		pattern, err := regexp.Compile(body)
		if err != nil {
			return nil, fmt.Errorf("controller: selector is not a valid regular expression: %w", err)
		}
		return &PlayerMatcher{selector: selector, pattern: pattern}, nil
	}
	return &PlayerMatcher{selector: selector, exact: exact}, nil
}

// IsMatch reports whether name satisfies the matcher.
func (m *PlayerMatcher) IsMatch(name string) bool {
	if m.exact {
		return name == m.selector
	}
	if m.pattern != nil {
		// Anchored at the start only, matching re.match's semantics, not
		// Go's unanchored MatchString.
		loc := m.pattern.FindStringIndex(name)
		return loc != nil && loc[0] == 0
	}
	return strings.HasPrefix(name, m.selector)
}
