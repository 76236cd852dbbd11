package config

import (
	"testing"
)

func TestURLMatcher_IsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		denied  []string
		url     string
		want    bool
	}{
		{
			name: "no patterns - allow all",
			url:  "https://example.com/",
			want: true,
		},
		{
			name:    "allowed host match",
			allowed: []string{"https://example.com/*"},
			url:     "https://example.com/login",
			want:    true,
		},
		{
			name:    "allowed host no match",
			allowed: []string{"https://example.com/*"},
			url:     "https://evil.test/",
			want:    false,
		},
		{
			name:    "denied pattern takes precedence",
			allowed: []string{"https://example.com/*"},
			denied:  []string{"*/admin*"},
			url:     "https://example.com/admin/users",
			want:    false,
		},
		{
			name:    "alternatives",
			allowed: []string{"{http,https}://localhost:*"},
			url:     "http://localhost:8080/index.html",
			want:    true,
		},
		{
			name:    "surrounding whitespace ignored",
			allowed: []string{"about:blank"},
			url:     " about:blank ",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewURLMatcher(tt.allowed, tt.denied)
			if err != nil {
				t.Fatalf("NewURLMatcher() error = %v", err)
			}
			if got := m.IsAllowed(tt.url); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestURLMatcher_Nil(t *testing.T) {
	var m *URLMatcher
	if !m.IsAllowed("https://anything.test/") {
		t.Error("nil matcher should allow every url")
	}
}

func TestNewURLMatcher_InvalidDenied(t *testing.T) {
	if _, err := NewURLMatcher(nil, []string{"[bad"}); err == nil {
		t.Error("expected error for invalid denied pattern")
	}
}
