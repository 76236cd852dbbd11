package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// URLMatcher handles glob pattern matching for navigation control
type URLMatcher struct {
	allowedPatterns []glob.Glob
	deniedPatterns  []glob.Glob
}

// NewURLMatcher creates a new URL matcher
func NewURLMatcher(allowed, denied []string) (*URLMatcher, error) {
	m := &URLMatcher{}

	for _, pattern := range allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed url pattern '%s': %w", pattern, err)
		}
		m.allowedPatterns = append(m.allowedPatterns, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied url pattern '%s': %w", pattern, err)
		}
		m.deniedPatterns = append(m.deniedPatterns, g)
	}

	return m, nil
}

// IsAllowed returns true if url may be loaded. A nil matcher allows everything.
func (m *URLMatcher) IsAllowed(url string) bool {
	if m == nil {
		return true
	}
	url = strings.TrimSpace(url)

	// Denied patterns take precedence
	for _, pattern := range m.deniedPatterns {
		if pattern.Match(url) {
			return false
		}
	}

	if len(m.allowedPatterns) == 0 {
		return true
	}

	for _, pattern := range m.allowedPatterns {
		if pattern.Match(url) {
			return true
		}
	}

	return false
}
