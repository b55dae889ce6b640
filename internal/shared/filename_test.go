package shared

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaces become underscores", input: "Summer Mix 2024", want: "Summer_Mix_2024"},
		{name: "whitespace runs collapse", input: "  Late   Night\tDrive ", want: "Late_Night_Drive"},
		{name: "punctuation stripped", input: "Rock & Roll: Vol. 1!", want: "Rock_Roll_Vol_1"},
		{name: "hyphen and underscore kept", input: "lo-fi_beats", want: "lo-fi_beats"},
		{name: "accents folded", input: "Beyoncé Café", want: "Beyonce_Cafe"},
		{name: "path separators stripped", input: "../../etc/passwd", want: "etcpasswd"},
		{name: "empty falls back", input: "!!!", want: "playlist"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("length capped", func(t *testing.T) {
		got := SanitizeFilename(strings.Repeat("a", 250))
		if len(got) != 100 {
			t.Errorf("expected 100 chars, got %d", len(got))
		}
	})
}
