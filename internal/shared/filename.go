package shared

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFilenameLength = 100

var (
	filenameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s_-]`)
	filenameSpaces     = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a playlist name into a safe archive base name.
//
// Accents are folded ("Beyoncé" -> "Beyonce"), anything outside letters, digits, whitespace, hyphen and
// underscore is dropped, whitespace runs become a single underscore, and the result is capped at 100 bytes.
// An empty result falls back to "playlist".
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	clean := filenameDisallowed.ReplaceAllString(folded, "")
	clean = filenameSpaces.ReplaceAllString(strings.TrimSpace(clean), "_")

	if len(clean) > maxFilenameLength {
		clean = clean[:maxFilenameLength]
	}
	if clean == "" {
		return "playlist"
	}
	return clean
}
