package store

import "testing"

func TestStripFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fragment", "https://example.com/a", "https://example.com/a"},
		{"fragment", "https://example.com/a#top", "https://example.com/a"},
		{"query and fragment", "https://example.com/a?q=1#x", "https://example.com/a?q=1"},
		{"empty fragment", "https://example.com/a#", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripFragment(tt.in); got != tt.want {
				t.Errorf("StripFragment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/", true},
		{"http://example.com/page", true},
		{"ftp://example.com/file", false},
		{"mailto:someone@example.com", false},
		{"/relative/path", false},
		{"https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := IsValidURL(tt.in); got != tt.want {
				t.Errorf("IsValidURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
